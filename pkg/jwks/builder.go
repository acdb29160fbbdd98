// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/logger"
	"github.com/stacklok/jwkprovider/pkg/networking"
)

// Defaults applied by NewBuilder and DefaultOptions.
const (
	DefaultCacheSize    = 5
	DefaultCacheTTL     = 10 * time.Hour
	DefaultBucketSize   = 10
	DefaultRefillPeriod = time.Minute
)

// Options is the full configuration of a provider chain.
// The zero value has caching and rate limiting disabled; use DefaultOptions
// for the recommended starting point.
type Options struct {
	// Domain is a bare domain or an http(s) URL. Required.
	Domain string

	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration

	RateLimitEnabled bool
	BucketSize       int
	RefillPeriod     time.Duration

	// ConnectTimeout and ReadTimeout tune the default HTTP client.
	// Zero keeps the networking package defaults. A whole request may take
	// ConnectTimeout plus ReadTimeout plus the TLS handshake timeout.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Headers are sent with every JWKS request.
	Headers http.Header

	// CABundlePath points at a PEM bundle used in place of the system roots.
	CABundlePath string

	// AllowPrivateIP permits endpoints on private or loopback addresses.
	AllowPrivateIP bool

	// InsecureAllowHTTP permits plain http endpoints. Localhost endpoints
	// are always allowed over http.
	InsecureAllowHTTP bool

	// HTTPClient replaces the default client. When set the timeout, CA
	// and address options above are ignored.
	HTTPClient networking.HTTPClient

	// MeterProvider receives provider metrics. Nil uses the global provider.
	MeterProvider metric.MeterProvider
}

// DefaultOptions returns options with caching and rate limiting enabled.
func DefaultOptions() Options {
	return Options{
		CacheEnabled:     true,
		CacheSize:        DefaultCacheSize,
		CacheTTL:         DefaultCacheTTL,
		RateLimitEnabled: true,
		BucketSize:       DefaultBucketSize,
		RefillPeriod:     DefaultRefillPeriod,
	}
}

// Build validates the options and composes the provider chain. With both
// stages enabled the result is a CachedProvider wrapping a
// RateLimitedProvider wrapping a URLProvider, so cache hits never consume
// a rate limit token.
func (o Options) Build() (Provider, error) {
	return o.build(time.Now)
}

func (o Options) build(now func() time.Time) (Provider, error) {
	jwksURL, err := NormalizeURL(o.Domain)
	if err != nil {
		return nil, err
	}

	client := o.HTTPClient
	if client == nil {
		client, err = o.httpClient(jwksURL)
		if err != nil {
			return nil, err
		}
	}

	meterProvider := o.MeterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	metrics, err := newInstruments(meterProvider, jwksURL)
	if err != nil {
		return nil, jwkerrors.NewConfigurationError("failed to create metric instruments", err)
	}

	urlProvider, err := NewURLProvider(jwksURL, client, o.Headers)
	if err != nil {
		return nil, err
	}
	urlProvider.metrics = metrics

	var provider Provider = urlProvider

	if o.RateLimitEnabled {
		bucket, err := newBucket(o.BucketSize, o.RefillPeriod, now)
		if err != nil {
			return nil, err
		}
		limited := NewRateLimitedProvider(provider, bucket)
		limited.metrics = metrics
		provider = limited
	}

	if o.CacheEnabled {
		cached, err := newCachedProvider(provider, o.CacheSize, o.CacheTTL, now)
		if err != nil {
			return nil, err
		}
		cached.metrics = metrics
		provider = cached
	}

	logger.Debugw("built JWKS provider",
		"url", jwksURL,
		"cache_enabled", o.CacheEnabled,
		"rate_limit_enabled", o.RateLimitEnabled)

	return provider, nil
}

func (o Options) httpClient(jwksURL string) (*http.Client, error) {
	allowPrivate := o.AllowPrivateIP
	allowHTTP := o.InsecureAllowHTTP
	if u, err := url.Parse(jwksURL); err == nil && networking.IsLocalhost(u.Host) {
		allowPrivate = true
		allowHTTP = true
	}

	client, err := networking.NewHttpClientBuilder().
		WithTimeout(o.requestTimeout()).
		WithConnectTimeout(o.ConnectTimeout).
		WithReadTimeout(o.ReadTimeout).
		WithCABundle(o.CABundlePath).
		WithPrivateIPs(allowPrivate).
		WithInsecureAllowHTTP(allowHTTP).
		Build()
	if err != nil {
		return nil, jwkerrors.NewConfigurationError("failed to create HTTP client", err)
	}
	return client, nil
}

// requestTimeout bounds a whole request: connecting, the TLS handshake and
// waiting for the response. With the networking defaults this is
// networking.HttpTimeout.
func (o Options) requestTimeout() time.Duration {
	connect := o.ConnectTimeout
	if connect <= 0 {
		connect = networking.DefaultConnectTimeout
	}
	read := o.ReadTimeout
	if read <= 0 {
		read = networking.DefaultReadTimeout
	}
	return connect + networking.DefaultTLSHandshakeTimeout + read
}

// Builder configures and builds a provider chain.
// Caching and rate limiting are enabled with default parameters unless
// turned off explicitly.
type Builder struct {
	opts Options
	now  func() time.Time
}

// NewBuilder returns a builder initialised with DefaultOptions.
func NewBuilder() *Builder {
	return &Builder{opts: DefaultOptions(), now: time.Now}
}

// ForDomain sets the endpoint. A bare domain such as "samples.auth0.com" is
// fetched from https://samples.auth0.com/.well-known/jwks.json.
func (b *Builder) ForDomain(domain string) *Builder {
	b.opts.Domain = domain
	return b
}

// ForURL sets the endpoint from a parsed URL.
func (b *Builder) ForURL(u *url.URL) *Builder {
	if u == nil {
		b.opts.Domain = ""
		return b
	}
	b.opts.Domain = u.String()
	return b
}

// Cached toggles caching with the current size and TTL.
func (b *Builder) Cached(enabled bool) *Builder {
	b.opts.CacheEnabled = enabled
	return b
}

// CachedWith enables caching of up to size keys for ttl.
func (b *Builder) CachedWith(size int, ttl time.Duration) *Builder {
	b.opts.CacheEnabled = true
	b.opts.CacheSize = size
	b.opts.CacheTTL = ttl
	return b
}

// RateLimited toggles rate limiting with the current bucket parameters.
func (b *Builder) RateLimited(enabled bool) *Builder {
	b.opts.RateLimitEnabled = enabled
	return b
}

// RateLimitedWith enables rate limiting to size lookups per period.
func (b *Builder) RateLimitedWith(size int, period time.Duration) *Builder {
	b.opts.RateLimitEnabled = true
	b.opts.BucketSize = size
	b.opts.RefillPeriod = period
	return b
}

// Timeouts sets the connect and read timeouts of the default HTTP client.
func (b *Builder) Timeouts(connect, read time.Duration) *Builder {
	b.opts.ConnectTimeout = connect
	b.opts.ReadTimeout = read
	return b
}

// WithHeaders adds headers sent with every JWKS request.
func (b *Builder) WithHeaders(headers map[string]string) *Builder {
	if b.opts.Headers == nil {
		b.opts.Headers = make(http.Header, len(headers))
	}
	for k, v := range headers {
		b.opts.Headers.Set(k, v)
	}
	return b
}

// WithHTTPClient replaces the default HTTP client.
func (b *Builder) WithHTTPClient(client networking.HTTPClient) *Builder {
	b.opts.HTTPClient = client
	return b
}

// WithCABundle trusts the PEM certificates in path.
func (b *Builder) WithCABundle(path string) *Builder {
	b.opts.CABundlePath = path
	return b
}

// AllowPrivateIP permits endpoints on private addresses.
func (b *Builder) AllowPrivateIP(allow bool) *Builder {
	b.opts.AllowPrivateIP = allow
	return b
}

// InsecureAllowHTTP permits plain http endpoints.
func (b *Builder) InsecureAllowHTTP(allow bool) *Builder {
	b.opts.InsecureAllowHTTP = allow
	return b
}

// WithMeterProvider sets where provider metrics are reported.
func (b *Builder) WithMeterProvider(mp metric.MeterProvider) *Builder {
	b.opts.MeterProvider = mp
	return b
}

// Options returns a copy of the accumulated configuration.
func (b *Builder) Options() Options {
	opts := b.opts
	opts.Headers = b.opts.Headers.Clone()
	return opts
}

// Build composes the provider chain. It fails with a configuration error
// when no domain was set, regardless of the other settings.
func (b *Builder) Build() (Provider, error) {
	return b.opts.build(b.now)
}
