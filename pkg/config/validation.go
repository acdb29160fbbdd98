// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Error message templates for consistent error formatting
const (
	errFileNotFound  = "file not found or not accessible: %w"
	errFileRead      = "failed to read file: %w"
	errNoCertificate = "no PEM certificate found"
	errInvalidCert   = "invalid certificate: %w"
)

// validateFilePath validates that a file path exists and is accessible.
// It also cleans the file path using filepath.Clean.
// Returns the cleaned path and an error if the file doesn't exist or isn't accessible.
func validateFilePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	if _, err := os.Stat(cleanPath); err != nil {
		return "", fmt.Errorf(errFileNotFound, err)
	}

	return cleanPath, nil
}

// readFile reads the contents of a file and returns the data.
// This is a wrapper around os.ReadFile with consistent error messaging.
func readFile(path string) ([]byte, error) {
	// #nosec G304: File path is user-provided but should be validated by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFileRead, err)
	}
	return data, nil
}

// validateCABundle checks that path holds at least one PEM certificate and
// that every certificate block in it parses. Returns the cleaned path.
func validateCABundle(path string) (string, error) {
	cleanPath, err := validateFilePath(path)
	if err != nil {
		return "", err
	}

	data, err := readFile(cleanPath)
	if err != nil {
		return "", err
	}

	found := false
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return "", fmt.Errorf(errInvalidCert, err)
		}
		found = true
	}
	if !found {
		return "", errors.New(errNoCertificate)
	}

	return cleanPath, nil
}
