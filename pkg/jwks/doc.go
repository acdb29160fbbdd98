// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package jwks retrieves JSON Web Keys from a remote JWKS endpoint and exposes
them by key identifier for JWT signature verification.

A provider chain is assembled with a Builder:

	provider, err := jwks.NewBuilder().
	    ForDomain("samples.auth0.com").
	    CachedWith(10, 24*time.Hour).
	    RateLimitedWith(10, time.Minute).
	    Build()

	key, err := provider.Get(ctx, kid)
	publicKey, err := key.PublicKey()

The built chain is a CachedProvider wrapping a RateLimitedProvider wrapping a
URLProvider. Cache hits never consume rate limit tokens. Both decorators are
enabled with their defaults unless configured otherwise.
*/
package jwks
