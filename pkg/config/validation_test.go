// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCABundle writes a self-signed CA certificate in PEM form and returns its path.
func writeCABundle(t *testing.T, dir string) string {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	path := filepath.Join(dir, "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestValidateFilePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0600))

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "existing file", path: existing, want: existing},
		{name: "unclean path", path: filepath.Join(dir, ".", "file.txt"), want: existing},
		{name: "missing file", path: filepath.Join(dir, "missing.txt"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := validateFilePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "file not found or not accessible")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCABundle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setupFunc func(t *testing.T, dir string) string
		errMsg    string
	}{
		{
			name: "valid bundle",
			setupFunc: func(t *testing.T, dir string) string {
				t.Helper()
				return writeCABundle(t, dir)
			},
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T, dir string) string {
				t.Helper()
				return filepath.Join(dir, "missing.pem")
			},
			errMsg: "file not found or not accessible",
		},
		{
			name: "no PEM blocks",
			setupFunc: func(t *testing.T, dir string) string {
				t.Helper()
				path := filepath.Join(dir, "empty.pem")
				require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0600))
				return path
			},
			errMsg: "no PEM certificate found",
		},
		{
			name: "corrupt certificate",
			setupFunc: func(t *testing.T, dir string) string {
				t.Helper()
				path := filepath.Join(dir, "corrupt.pem")
				data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("garbage")})
				require.NoError(t, os.WriteFile(path, data, 0600))
				return path
			},
			errMsg: "invalid certificate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := tt.setupFunc(t, t.TempDir())

			got, err := validateCABundle(path)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, got)
		})
	}
}
