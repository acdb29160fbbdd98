// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"net/http"
	"time"
)

// Clock-injecting constructors for the external test package.
var (
	NewBucketWithClock         = newBucket
	NewCachedProviderWithClock = newCachedProvider
)

// WithClock replaces the time source of every stage built by b.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// DefaultHTTPClient exposes the client Build creates when none is supplied.
func (o Options) DefaultHTTPClient(jwksURL string) (*http.Client, error) {
	return o.httpClient(jwksURL)
}
