// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry builds the OpenTelemetry meter provider that JWKS
// providers and the key watcher report to. Metrics can be pushed to an OTLP
// collector, exposed on a Prometheus /metrics handler, or both.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/stacklok/jwkprovider/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Config holds the telemetry configuration.
type Config struct {
	// Service information
	ServiceName    string // ServiceName identifies the service for telemetry data
	ServiceVersion string // ServiceVersion identifies the service version for telemetry data

	// OTLP configuration
	OTLPEndpoint   string            // OTLPEndpoint is the OTLP collector endpoint (e.g., "localhost:4318")
	Headers        map[string]string // Headers are additional headers to send with OTLP requests
	Insecure       bool              // Insecure enables insecure transport (no TLS) for OTLP
	MetricsEnabled bool              // MetricsEnabled controls whether metrics are pushed over OTLP

	// Prometheus configuration
	EnablePrometheusMetricsPath bool // EnablePrometheusMetricsPath enables the Prometheus /metrics handler
	IncludeRuntimeMetrics       bool // IncludeRuntimeMetrics adds Go runtime and process collectors
}

// ProviderOption is an option type used to configure the telemetry provider
type ProviderOption func(*Config) error

// WithServiceName sets the service name
func WithServiceName(serviceName string) ProviderOption {
	return func(config *Config) error {
		if serviceName == "" {
			return fmt.Errorf("service name cannot be empty")
		}
		config.ServiceName = serviceName
		return nil
	}
}

// WithServiceVersion sets the service version
func WithServiceVersion(serviceVersion string) ProviderOption {
	return func(config *Config) error {
		if serviceVersion == "" {
			return fmt.Errorf("service version cannot be empty")
		}
		config.ServiceVersion = serviceVersion
		return nil
	}
}

// WithOTLPEndpoint sets the OTLP endpoint and enables OTLP metrics
func WithOTLPEndpoint(endpoint string) ProviderOption {
	return func(config *Config) error {
		config.OTLPEndpoint = endpoint
		config.MetricsEnabled = endpoint != ""
		return nil
	}
}

// WithHeaders sets the OTLP headers
func WithHeaders(headers map[string]string) ProviderOption {
	return func(config *Config) error {
		config.Headers = headers
		return nil
	}
}

// WithInsecure sets the insecure flag
func WithInsecure(insecure bool) ProviderOption {
	return func(config *Config) error {
		config.Insecure = insecure
		return nil
	}
}

// WithEnablePrometheusMetricsPath sets the enable prometheus metrics path flag
func WithEnablePrometheusMetricsPath(enable bool) ProviderOption {
	return func(config *Config) error {
		config.EnablePrometheusMetricsPath = enable
		return nil
	}
}

// WithRuntimeMetrics adds Go runtime metrics to the Prometheus handler
func WithRuntimeMetrics(enable bool) ProviderOption {
	return func(config *Config) error {
		config.IncludeRuntimeMetrics = enable
		return nil
	}
}

// Provider owns the meter provider and its exporters.
type Provider struct {
	meterProvider     metric.MeterProvider
	prometheusHandler http.Handler
	shutdownFuncs     []func(context.Context) error
}

// NewProvider creates the meter provider described by options. With neither
// OTLP nor Prometheus enabled it returns a no-op provider.
func NewProvider(ctx context.Context, options ...ProviderOption) (*Provider, error) {
	config := Config{}
	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	if !config.MetricsEnabled && !config.EnablePrometheusMetricsPath {
		logger.Debugf("No telemetry configured, using no-op providers")
		return &Provider{meterProvider: noop.NewMeterProvider()}, nil
	}
	if config.IncludeRuntimeMetrics && !config.EnablePrometheusMetricsPath {
		return nil, fmt.Errorf("runtime metrics requires EnablePrometheusMetricsPath")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource with service name '%s' and version '%s': %w",
			config.ServiceName, config.ServiceVersion, err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	provider := &Provider{}

	if config.MetricsEnabled {
		reader, err := newOTLPReader(ctx, config)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	if config.EnablePrometheusMetricsPath {
		reader, handler, err := newPrometheusReader(config.IncludeRuntimeMetrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(reader))
		provider.prometheusHandler = handler
	}

	meterProvider := sdkmetric.NewMeterProvider(opts...)
	provider.meterProvider = meterProvider
	provider.shutdownFuncs = append(provider.shutdownFuncs, meterProvider.Shutdown)

	logger.Debugw("telemetry provider created",
		"otlp_endpoint", config.OTLPEndpoint,
		"prometheus", config.EnablePrometheusMetricsPath)
	return provider, nil
}

// MeterProvider returns the meter provider
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// PrometheusHandler returns the Prometheus metrics handler if configured
func (p *Provider) PrometheusHandler() http.Handler {
	return p.prometheusHandler
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	for i, shutdown := range p.shutdownFuncs {
		if err := shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("provider %d shutdown failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
