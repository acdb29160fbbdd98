// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/jwks"
	"github.com/stacklok/jwkprovider/pkg/jwks/mocks"
)

func TestNewBucket_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		size   int
		period time.Duration
	}{
		{name: "zero size", size: 0, period: time.Minute},
		{name: "negative size", size: -1, period: time.Minute},
		{name: "zero period", size: 1, period: 0},
		{name: "negative period", size: 1, period: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := jwks.NewBucket(tt.size, tt.period)
			require.Error(t, err)
			assert.True(t, jwkerrors.IsConfiguration(err))
		})
	}
}

func TestBucket_Consume(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	bucket, err := jwks.NewBucketWithClock(3, time.Minute, clock.Now)
	require.NoError(t, err)

	for i := range 3 {
		assert.True(t, bucket.Consume(), "call %d should be admitted", i+1)
	}
	assert.False(t, bucket.Consume(), "call beyond capacity should be rejected")

	clock.Advance(59 * time.Second)
	assert.False(t, bucket.Consume(), "no refill before the period elapses")

	clock.Advance(time.Second)
	for i := range 3 {
		assert.True(t, bucket.Consume(), "call %d after refill should be admitted", i+1)
	}
	assert.False(t, bucket.Consume())
}

func TestBucket_RefillDoesNotAccumulate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	bucket, err := jwks.NewBucketWithClock(2, time.Second, clock.Now)
	require.NoError(t, err)

	clock.Advance(time.Hour)

	assert.True(t, bucket.Consume())
	assert.True(t, bucket.Consume())
	assert.False(t, bucket.Consume(), "idle periods must not raise the capacity")
}

func TestBucket_ConcurrentConsume(t *testing.T) {
	t.Parallel()

	const size = 25
	clock := newFakeClock()
	bucket, err := jwks.NewBucketWithClock(size, time.Minute, clock.Now)
	require.NoError(t, err)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bucket.Consume() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(size), admitted.Load())
}

func TestRateLimitedProvider_Get(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	base := mocks.NewMockProvider(ctrl)

	key, err := jwks.ParseKey([]byte(`{"kty":"oct","kid":"k1"}`))
	require.NoError(t, err)

	clock := newFakeClock()
	bucket, err := jwks.NewBucketWithClock(2, time.Minute, clock.Now)
	require.NoError(t, err)
	provider := jwks.NewRateLimitedProvider(base, bucket)

	ctx := context.Background()
	base.EXPECT().Get(ctx, "k1").Return(key, nil).Times(2)

	for range 2 {
		got, err := provider.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Same(t, key, got)
	}

	_, err = provider.Get(ctx, "k1")
	require.Error(t, err)
	assert.True(t, jwkerrors.IsRateLimitExceeded(err))

	clock.Advance(time.Minute)
	base.EXPECT().Get(ctx, "k1").Return(key, nil)
	_, err = provider.Get(ctx, "k1")
	require.NoError(t, err)
}

func TestRateLimitedProvider_PropagatesErrorsUnchanged(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	base := mocks.NewMockProvider(ctrl)

	bucket, err := jwks.NewBucket(5, time.Minute)
	require.NoError(t, err)
	provider := jwks.NewRateLimitedProvider(base, bucket)

	upstream := jwkerrors.NewNoSuchKeyError("no key", nil)
	base.EXPECT().Get(gomock.Any(), "missing").Return(nil, upstream)

	_, err = provider.Get(context.Background(), "missing")
	assert.Same(t, upstream, err)
}

func TestRateLimitedProvider_FailedCallsConsumeTokens(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	base := mocks.NewMockProvider(ctrl)

	bucket, err := jwks.NewBucketWithClock(1, time.Minute, newFakeClock().Now)
	require.NoError(t, err)
	provider := jwks.NewRateLimitedProvider(base, bucket)

	base.EXPECT().Get(gomock.Any(), "a").Return(nil, jwkerrors.NewNetworkError("down", nil))

	_, err = provider.Get(context.Background(), "a")
	assert.True(t, jwkerrors.IsNetwork(err))

	_, err = provider.Get(context.Background(), "a")
	assert.True(t, jwkerrors.IsRateLimitExceeded(err))
}

func TestRateLimitedProvider_BaseProvider(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	base := mocks.NewMockProvider(ctrl)
	bucket, err := jwks.NewBucket(1, time.Minute)
	require.NoError(t, err)

	provider := jwks.NewRateLimitedProvider(base, bucket)
	assert.Same(t, base, provider.BaseProvider())
	assert.Same(t, bucket, provider.Bucket())

	var _ jwks.Decorator = provider
}
