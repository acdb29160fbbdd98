// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package jwks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/logger"
	"github.com/stacklok/jwkprovider/pkg/networking"
	"github.com/stacklok/jwkprovider/pkg/versions"
)

// WellKnownJWKSPath is appended to domains and to URLs without a path.
const WellKnownJWKSPath = "/.well-known/jwks.json"

// NormalizeURL turns a bare domain or a URL into the JWKS endpoint URL.
// A bare domain is served over HTTPS; a URL without a path gets
// WellKnownJWKSPath; a URL with an explicit path is kept as is.
func NormalizeURL(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", jwkerrors.NewConfigurationError("Cannot build provider without domain", nil)
	}

	if !networking.IsURL(domain) {
		if strings.Contains(domain, "://") {
			return "", jwkerrors.NewConfigurationError(
				fmt.Sprintf("unsupported JWKS URL %q: only http and https are allowed", domain), nil)
		}
		domain = "https://" + domain
	}

	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return "", jwkerrors.NewConfigurationError(fmt.Sprintf("invalid JWKS domain %q", domain), err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = WellKnownJWKSPath
	}
	return u.String(), nil
}

// URLProvider fetches the JWKS document on every call. It performs no
// caching or throttling of its own.
type URLProvider struct {
	url     string
	client  networking.HTTPClient
	headers http.Header
	metrics *instruments
}

// NewURLProvider creates a provider for an already normalized JWKS URL.
// If client is nil a default client is built that only speaks HTTPS and
// refuses private addresses.
func NewURLProvider(jwksURL string, client networking.HTTPClient, headers http.Header) (*URLProvider, error) {
	if !networking.IsURL(jwksURL) {
		return nil, jwkerrors.NewConfigurationError(fmt.Sprintf("invalid JWKS URL %q", jwksURL), nil)
	}

	if client == nil {
		c, err := networking.NewHttpClientBuilder().Build()
		if err != nil {
			return nil, jwkerrors.NewConfigurationError("failed to create HTTP client", err)
		}
		client = c
	}

	h := headers.Clone()
	if h == nil {
		h = make(http.Header)
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", versions.UserAgent())
	}

	return &URLProvider{
		url:     jwksURL,
		client:  client,
		headers: h,
		metrics: noopInstruments(),
	}, nil
}

// URL returns the JWKS endpoint this provider fetches.
func (p *URLProvider) URL() string {
	return p.url
}

// Get fetches the key set and returns the key whose kid matches keyID.
// An empty keyID matches the only key of a single-key set.
func (p *URLProvider) Get(ctx context.Context, keyID string) (*Key, error) {
	keys, err := p.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	if keyID == "" && len(keys) == 1 {
		return keys[0], nil
	}
	for _, key := range keys {
		if key.ID() == keyID {
			return key, nil
		}
	}

	return nil, jwkerrors.NewNoSuchKeyError(
		fmt.Sprintf("no key with kid %q found in JWKS from %s", keyID, p.url), nil)
}

// GetAll fetches the JWKS document and returns every key in it.
func (p *URLProvider) GetAll(ctx context.Context) ([]*Key, error) {
	logger.Debugw("fetching JWKS", "url", p.url)

	start := time.Now()
	keys, err := p.fetch(ctx)
	p.metrics.recordFetch(ctx, time.Since(start), err)
	if err != nil {
		logger.Debugw("JWKS fetch failed", "url", p.url, "error", err)
		return nil, err
	}
	return keys, nil
}

func (p *URLProvider) fetch(ctx context.Context) ([]*Key, error) {
	// Endpoints serve key sets as text/plain or without a Content-Type; the
	// body decides whether the response is a key set.
	result, err := networking.FetchJSON[jwksDocument](ctx, p.client, p.url,
		networking.WithHeaders(p.headers),
		networking.WithoutContentTypeValidation(),
	)
	if err != nil {
		if errors.Is(err, networking.ErrInvalidResponse) {
			return nil, jwkerrors.NewParseError(fmt.Sprintf("invalid JWKS document from %s", p.url), err)
		}
		return nil, jwkerrors.NewNetworkError(fmt.Sprintf("failed to fetch JWKS from %s", p.url), err)
	}

	keys, err := parseDocument(result.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS document from %s: %w", p.url, err)
	}
	return keys, nil
}
