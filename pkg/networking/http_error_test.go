// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package networking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPError(t *testing.T) {
	t.Parallel()

	err := NewHTTPError(404, "https://example.com/.well-known/jwks.json", "404 Not Found")

	require.Error(t, err)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 404, httpErr.StatusCode)
	assert.Equal(t, "https://example.com/.well-known/jwks.json", httpErr.URL)
	assert.Equal(t, "404 Not Found", httpErr.Message)
	assert.Equal(t, "HTTP 404 for URL https://example.com/.well-known/jwks.json: 404 Not Found", err.Error())
}

func TestIsHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   bool
	}{
		{
			name:       "matching HTTPError",
			err:        &HTTPError{StatusCode: 404, URL: "https://example.com"},
			statusCode: 404,
			expected:   true,
		},
		{
			name:       "non-matching status code",
			err:        &HTTPError{StatusCode: 404, URL: "https://example.com"},
			statusCode: 500,
			expected:   false,
		},
		{
			name:       "any HTTPError with statusCode 0",
			err:        &HTTPError{StatusCode: 403, URL: "https://example.com"},
			statusCode: 0,
			expected:   true,
		},
		{
			name:       "wrapped HTTPError",
			err:        fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 502}),
			statusCode: 502,
			expected:   true,
		},
		{
			name:       "non-HTTPError",
			err:        errors.New("some other error"),
			statusCode: 0,
			expected:   false,
		},
		{
			name:       "nil error",
			err:        nil,
			statusCode: 0,
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsHTTPError(tt.err, tt.statusCode))
		})
	}
}

func TestHTTPError_Temporary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   bool
	}{
		{status: 400, want: false},
		{status: 401, want: false},
		{status: 404, want: false},
		{status: 408, want: true},
		{status: 429, want: true},
		{status: 500, want: true},
		{status: 503, want: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			t.Parallel()
			err := NewHTTPError(tt.status, "https://example.com", "")
			assert.Equal(t, tt.want, IsTemporary(fmt.Errorf("fetch: %w", err)))
		})
	}
}

func TestIsTemporary_TransportError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTemporary(errors.New("connection refused")))
}
