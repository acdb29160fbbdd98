// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/logger"
)

// Bucket admits at most size calls per period and is refilled to capacity
// when the period elapses. It never blocks.
type Bucket struct {
	size   int
	period time.Duration
	now    func() time.Time

	mu          sync.Mutex
	windowStart time.Time
	// A limiter with a zero rate spends its burst and never refills, so it
	// counts down exactly one window's worth of tokens.
	limiter *rate.Limiter
}

// NewBucket creates a full bucket of size tokens refilled every period.
func NewBucket(size int, period time.Duration) (*Bucket, error) {
	return newBucket(size, period, time.Now)
}

func newBucket(size int, period time.Duration, now func() time.Time) (*Bucket, error) {
	if size <= 0 {
		return nil, jwkerrors.NewConfigurationError(
			fmt.Sprintf("rate limit bucket size must be positive, got %d", size), nil)
	}
	if period <= 0 {
		return nil, jwkerrors.NewConfigurationError(
			fmt.Sprintf("rate limit refill period must be positive, got %s", period), nil)
	}

	return &Bucket{
		size:        size,
		period:      period,
		now:         now,
		windowStart: now(),
		limiter:     rate.NewLimiter(0, size),
	}, nil
}

// Size returns the bucket capacity.
func (b *Bucket) Size() int { return b.size }

// Period returns the refill period.
func (b *Bucket) Period() time.Duration { return b.period }

// Consume takes one token and reports whether one was available.
func (b *Bucket) Consume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.windowStart) >= b.period {
		b.windowStart = now
		b.limiter = rate.NewLimiter(0, b.size)
	}
	return b.limiter.AllowN(now, 1)
}

// RateLimitedProvider rejects lookups once its bucket is empty and
// otherwise delegates to the wrapped provider.
type RateLimitedProvider struct {
	provider Provider
	bucket   *Bucket
	metrics  *instruments
}

// NewRateLimitedProvider wraps provider with bucket.
func NewRateLimitedProvider(provider Provider, bucket *Bucket) *RateLimitedProvider {
	return &RateLimitedProvider{
		provider: provider,
		bucket:   bucket,
		metrics:  noopInstruments(),
	}
}

// Get consumes one token and delegates, or fails immediately with a rate
// limit exceeded error when no token is left. Errors from the wrapped
// provider are returned unchanged.
func (p *RateLimitedProvider) Get(ctx context.Context, keyID string) (*Key, error) {
	if !p.bucket.Consume() {
		p.metrics.recordRateLimitRejection(ctx)
		logger.Debugw("JWKS lookup rejected by rate limiter", "kid", keyID,
			"bucket_size", p.bucket.Size(), "period", p.bucket.Period())
		return nil, jwkerrors.NewRateLimitExceededError(
			fmt.Sprintf("more than %d JWKS lookups within %s", p.bucket.Size(), p.bucket.Period()), nil)
	}
	return p.provider.Get(ctx, keyID)
}

// BaseProvider returns the wrapped provider.
func (p *RateLimitedProvider) BaseProvider() Provider {
	return p.provider
}

// Bucket returns the token bucket guarding the wrapped provider.
func (p *RateLimitedProvider) Bucket() *Bucket {
	return p.bucket
}
