// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/stacklok/jwkprovider/pkg/jwks"
)

// counterTotals sums every Int64 counter by name.
func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestProviderMetrics(t *testing.T) {
	t.Parallel()

	key, _ := newRSAKey(t, "k1")
	server := newKeySetServer(t, key)

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	provider, err := jwks.NewBuilder().
		ForDomain(server.URL).
		CachedWith(5, time.Hour).
		RateLimitedWith(2, time.Hour).
		WithMeterProvider(meterProvider).
		Build()
	require.NoError(t, err)

	ctx := context.Background()
	_, err = provider.Get(ctx, "k1") // miss, fetch
	require.NoError(t, err)
	_, err = provider.Get(ctx, "k1") // hit
	require.NoError(t, err)
	_, err = provider.Get(ctx, "missing") // miss, fetch, no such key
	require.Error(t, err)
	_, err = provider.Get(ctx, "missing") // miss, rejected
	require.Error(t, err)

	totals := counterTotals(t, reader)
	assert.Equal(t, int64(1), totals["jwks_cache_hits"])
	assert.Equal(t, int64(3), totals["jwks_cache_misses"])
	assert.Equal(t, int64(2), totals["jwks_fetch_requests"])
	assert.Equal(t, int64(0), totals["jwks_fetch_errors"], "a missing kid is not a fetch error")
	assert.Equal(t, int64(1), totals["jwks_rate_limit_rejections"])
}

func TestProviderMetrics_FetchErrors(t *testing.T) {
	t.Parallel()

	server := newJWKSServer(t, http.StatusBadGateway, "application/json", []byte(`{}`))

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	provider, err := jwks.NewBuilder().
		ForDomain(server.URL).
		Cached(false).
		RateLimited(false).
		WithMeterProvider(meterProvider).
		Build()
	require.NoError(t, err)

	_, err = provider.Get(context.Background(), "k1")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var foundErrors, foundDuration bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "jwks_fetch_errors":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				errType, ok := sum.DataPoints[0].Attributes.Value("error.type")
				require.True(t, ok)
				assert.Equal(t, "network", errType.AsString())
				foundErrors = true
			case "jwks_fetch_duration":
				foundDuration = true
			}
		}
	}
	assert.True(t, foundErrors, "fetch error counter should be recorded")
	assert.True(t, foundDuration, "fetch duration histogram should be recorded")
}
