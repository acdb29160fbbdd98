// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/logger"
)

type cacheEntry struct {
	key        *Key
	insertedAt time.Time
}

// CachedProvider keeps up to size keys for ttl after they were fetched,
// evicting the least recently used key when full. Failed lookups are never
// cached. Concurrent misses for the same kid are not coalesced.
type CachedProvider struct {
	provider Provider
	ttl      time.Duration
	entries  *lru.Cache[string, cacheEntry]
	now      func() time.Time
	metrics  *instruments
}

// NewCachedProvider wraps provider with an in-memory cache.
func NewCachedProvider(provider Provider, size int, ttl time.Duration) (*CachedProvider, error) {
	return newCachedProvider(provider, size, ttl, time.Now)
}

func newCachedProvider(provider Provider, size int, ttl time.Duration, now func() time.Time) (*CachedProvider, error) {
	if size <= 0 {
		return nil, jwkerrors.NewConfigurationError(
			fmt.Sprintf("cache size must be positive, got %d", size), nil)
	}
	if ttl <= 0 {
		return nil, jwkerrors.NewConfigurationError(
			fmt.Sprintf("cache TTL must be positive, got %s", ttl), nil)
	}

	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, jwkerrors.NewConfigurationError("failed to create key cache", err)
	}

	return &CachedProvider{
		provider: provider,
		ttl:      ttl,
		entries:  entries,
		now:      now,
		metrics:  noopInstruments(),
	}, nil
}

// Get returns a cached key younger than the TTL, or fetches it from the
// wrapped provider and caches it on success.
func (p *CachedProvider) Get(ctx context.Context, keyID string) (*Key, error) {
	if entry, ok := p.entries.Get(keyID); ok && p.now().Sub(entry.insertedAt) < p.ttl {
		p.metrics.recordCacheHit(ctx)
		logger.Debugw("JWKS cache hit", "kid", keyID)
		return entry.key, nil
	}

	p.metrics.recordCacheMiss(ctx)
	logger.Debugw("JWKS cache miss", "kid", keyID)

	key, err := p.provider.Get(ctx, keyID)
	if err != nil {
		return nil, err
	}

	p.entries.Add(keyID, cacheEntry{key: key, insertedAt: p.now()})
	return key, nil
}

// Invalidate drops the cached key for keyID, if any.
func (p *CachedProvider) Invalidate(keyID string) {
	p.entries.Remove(keyID)
}

// Purge drops every cached key.
func (p *CachedProvider) Purge() {
	p.entries.Purge()
}

// Len returns the number of cached keys, including expired ones not yet evicted.
func (p *CachedProvider) Len() int {
	return p.entries.Len()
}

// TTL returns how long a fetched key is served from the cache.
func (p *CachedProvider) TTL() time.Duration {
	return p.ttl
}

// BaseProvider returns the wrapped provider.
func (p *CachedProvider) BaseProvider() Provider {
	return p.provider
}
