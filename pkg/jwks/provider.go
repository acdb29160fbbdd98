// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks -source=provider.go Provider

// Provider returns JSON Web Keys by key identifier.
// Implementations are safe for concurrent use.
type Provider interface {
	// Get returns the key whose kid matches keyID.
	// Errors are classified by the predicates in pkg/errors: IsNetwork,
	// IsParse, IsNoSuchKey and IsRateLimitExceeded.
	Get(ctx context.Context, keyID string) (*Key, error)
}

// Decorator is implemented by providers that wrap another provider.
type Decorator interface {
	Provider

	// BaseProvider returns the wrapped provider.
	BaseProvider() Provider
}
