// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
)

const instrumentationName = "github.com/stacklok/jwkprovider/pkg/jwks"

var (
	attrJWKSURL   = attribute.Key("jwks.url")
	attrErrorType = attribute.Key("error.type")
)

// instruments records provider activity. Every stage of one chain shares
// the same instance.
type instruments struct {
	jwksURL string

	fetchRequests       metric.Int64Counter
	fetchErrors         metric.Int64Counter
	fetchDuration       metric.Float64Histogram
	cacheHits           metric.Int64Counter
	cacheMisses         metric.Int64Counter
	rateLimitRejections metric.Int64Counter
}

func newInstruments(meterProvider metric.MeterProvider, jwksURL string) (*instruments, error) {
	meter := meterProvider.Meter(instrumentationName)

	fetchRequests, err := meter.Int64Counter(
		"jwks_fetch_requests",
		metric.WithDescription("Total number of requests sent to the JWKS endpoint"))
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch requests counter: %w", err)
	}
	fetchErrors, err := meter.Int64Counter(
		"jwks_fetch_errors",
		metric.WithDescription("Total number of failed JWKS fetches"))
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch errors counter: %w", err)
	}
	fetchDuration, err := meter.Float64Histogram(
		"jwks_fetch_duration",
		metric.WithDescription("Duration of JWKS fetches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}
	cacheHits, err := meter.Int64Counter(
		"jwks_cache_hits",
		metric.WithDescription("Total number of keys served from the cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}
	cacheMisses, err := meter.Int64Counter(
		"jwks_cache_misses",
		metric.WithDescription("Total number of lookups that missed the cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}
	rateLimitRejections, err := meter.Int64Counter(
		"jwks_rate_limit_rejections",
		metric.WithDescription("Total number of lookups rejected by the rate limiter"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit rejections counter: %w", err)
	}

	return &instruments{
		jwksURL:             jwksURL,
		fetchRequests:       fetchRequests,
		fetchErrors:         fetchErrors,
		fetchDuration:       fetchDuration,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		rateLimitRejections: rateLimitRejections,
	}, nil
}

// noopInstruments is used by providers constructed outside a Builder.
func noopInstruments() *instruments {
	m, _ := newInstruments(noop.NewMeterProvider(), "")
	return m
}

func (m *instruments) urlAttr() metric.MeasurementOption {
	return metric.WithAttributes(attrJWKSURL.String(m.jwksURL))
}

func (m *instruments) recordFetch(ctx context.Context, duration time.Duration, err error) {
	m.fetchRequests.Add(ctx, 1, m.urlAttr())
	m.fetchDuration.Record(ctx, duration.Seconds(), m.urlAttr())
	if err != nil {
		m.fetchErrors.Add(ctx, 1, metric.WithAttributes(
			attrJWKSURL.String(m.jwksURL),
			attrErrorType.String(errorType(err)),
		))
	}
}

func (m *instruments) recordCacheHit(ctx context.Context) {
	m.cacheHits.Add(ctx, 1, m.urlAttr())
}

func (m *instruments) recordCacheMiss(ctx context.Context) {
	m.cacheMisses.Add(ctx, 1, m.urlAttr())
}

func (m *instruments) recordRateLimitRejection(ctx context.Context) {
	m.rateLimitRejections.Add(ctx, 1, m.urlAttr())
}

func errorType(err error) string {
	switch {
	case jwkerrors.IsNetwork(err):
		return jwkerrors.ErrNetwork
	case jwkerrors.IsParse(err):
		return jwkerrors.ErrParse
	default:
		return "other"
	}
}
