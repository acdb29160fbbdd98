// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error kinds returned by JWK providers.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrConfiguration is returned when a provider is built from an invalid configuration
	ErrConfiguration = "configuration"

	// ErrNetwork is returned when the JWKS endpoint cannot be reached, times out
	// or answers with a non-success status
	ErrNetwork = "network"

	// ErrParse is returned when the JWKS document or one of its keys is malformed
	ErrParse = "parse"

	// ErrNoSuchKey is returned when the key set does not contain the requested key id
	ErrNoSuchKey = "no_such_key"

	// ErrRateLimitExceeded is returned when a rate limited provider has no tokens left
	ErrRateLimitExceeded = "rate_limit_exceeded"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string, cause error) *Error {
	return NewError(ErrConfiguration, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *Error {
	return NewError(ErrNetwork, message, cause)
}

// NewParseError creates a new parse error
func NewParseError(message string, cause error) *Error {
	return NewError(ErrParse, message, cause)
}

// NewNoSuchKeyError creates a new no such key error
func NewNoSuchKeyError(message string, cause error) *Error {
	return NewError(ErrNoSuchKey, message, cause)
}

// NewRateLimitExceededError creates a new rate limit exceeded error
func NewRateLimitExceededError(message string, cause error) *Error {
	return NewError(ErrRateLimitExceeded, message, cause)
}

// IsConfiguration checks if the error is a configuration error
func IsConfiguration(err error) bool {
	return isType(err, ErrConfiguration)
}

// IsNetwork checks if the error is a network error
func IsNetwork(err error) bool {
	return isType(err, ErrNetwork)
}

// IsParse checks if the error is a parse error
func IsParse(err error) bool {
	return isType(err, ErrParse)
}

// IsNoSuchKey checks if the error is a no such key error
func IsNoSuchKey(err error) bool {
	return isType(err, ErrNoSuchKey)
}

// IsRateLimitExceeded checks if the error is a rate limit exceeded error
func IsRateLimitExceeded(err error) bool {
	return isType(err, ErrRateLimitExceeded)
}

// isType reports whether any *Error in err's chain has the given type.
func isType(err error, errorType string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errorType
}
