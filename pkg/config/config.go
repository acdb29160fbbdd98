// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads provider settings from a YAML file, JWKS_* environment
// variables and command-line flags, and turns them into jwks.Options.
package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/jwks"
	"github.com/stacklok/jwkprovider/pkg/logger"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. JWKS_DOMAIN or JWKS_CACHE_TTL.
const EnvPrefix = "JWKS"

const (
	configFileName = "jwkprovider/config.yaml"
	lockTimeout    = time.Second
)

// Config represents the provider configuration.
type Config struct {
	Domain    string          `mapstructure:"domain"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// CacheConfig contains the settings of the key cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Size    int           `mapstructure:"size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig contains the settings of the rate limiter.
type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	BucketSize   int           `mapstructure:"bucket_size"`
	RefillPeriod time.Duration `mapstructure:"refill_period"`
}

// HTTPConfig contains the settings of the HTTP client used to fetch the key set.
type HTTPConfig struct {
	ConnectTimeout    time.Duration     `mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration     `mapstructure:"read_timeout"`
	CABundle          string            `mapstructure:"ca_bundle"`
	AllowPrivateIP    bool              `mapstructure:"allow_private_ip"`
	InsecureAllowHTTP bool              `mapstructure:"insecure_allow_http"`
	Headers           map[string]string `mapstructure:"headers"`
}

// defaultPathGenerator generates the default config path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile(configFileName)
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// DefaultPath returns the location of the user configuration file.
func DefaultPath() (string, error) {
	return getConfigPath()
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Enabled: true,
			Size:    jwks.DefaultCacheSize,
			TTL:     jwks.DefaultCacheTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			BucketSize:   jwks.DefaultBucketSize,
			RefillPeriod: jwks.DefaultRefillPeriod,
		},
	}
}

// NewViper returns a viper instance with defaults and JWKS_* environment
// overrides registered. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("domain", d.Domain)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("rate_limit.enabled", d.RateLimit.Enabled)
	v.SetDefault("rate_limit.bucket_size", d.RateLimit.BucketSize)
	v.SetDefault("rate_limit.refill_period", d.RateLimit.RefillPeriod)
	v.SetDefault("http.connect_timeout", time.Duration(0))
	v.SetDefault("http.read_timeout", time.Duration(0))
	v.SetDefault("http.ca_bundle", "")
	v.SetDefault("http.allow_private_ip", false)
	v.SetDefault("http.insecure_allow_http", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. An explicit path must exist; when path is
// empty the default location is used if a file is present there.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		defaultPath, err := getConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, jwkerrors.NewConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
		}
		logger.Debugw("loaded configuration file", "path", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, jwkerrors.NewConfigurationError("failed to decode configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that can be checked without a network call.
// A missing domain is left for jwks.Options.Build to report.
func (c *Config) Validate() error {
	var errs []error

	if c.Domain != "" {
		if _, err := jwks.NormalizeURL(c.Domain); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Cache.Enabled {
		if c.Cache.Size <= 0 {
			errs = append(errs, fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size))
		}
		if c.Cache.TTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
		}
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.BucketSize <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.bucket_size must be positive, got %d", c.RateLimit.BucketSize))
		}
		if c.RateLimit.RefillPeriod <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.refill_period must be positive, got %s", c.RateLimit.RefillPeriod))
		}
	}
	if c.HTTP.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("http.connect_timeout must not be negative, got %s", c.HTTP.ConnectTimeout))
	}
	if c.HTTP.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("http.read_timeout must not be negative, got %s", c.HTTP.ReadTimeout))
	}
	if c.HTTP.CABundle != "" {
		cleanPath, err := validateCABundle(c.HTTP.CABundle)
		if err != nil {
			errs = append(errs, fmt.Errorf("http.ca_bundle: %w", err))
		} else {
			c.HTTP.CABundle = cleanPath
		}
	}

	if err := errors.Join(errs...); err != nil {
		return jwkerrors.NewConfigurationError("invalid configuration", err)
	}
	return nil
}

// Options converts the configuration into builder options.
func (c *Config) Options() jwks.Options {
	opts := jwks.Options{
		Domain:            c.Domain,
		CacheEnabled:      c.Cache.Enabled,
		CacheSize:         c.Cache.Size,
		CacheTTL:          c.Cache.TTL,
		RateLimitEnabled:  c.RateLimit.Enabled,
		BucketSize:        c.RateLimit.BucketSize,
		RefillPeriod:      c.RateLimit.RefillPeriod,
		ConnectTimeout:    c.HTTP.ConnectTimeout,
		ReadTimeout:       c.HTTP.ReadTimeout,
		CABundlePath:      c.HTTP.CABundle,
		AllowPrivateIP:    c.HTTP.AllowPrivateIP,
		InsecureAllowHTTP: c.HTTP.InsecureAllowHTTP,
	}
	if len(c.HTTP.Headers) > 0 {
		opts.Headers = make(http.Header, len(c.HTTP.Headers))
		for k, v := range c.HTTP.Headers {
			opts.Headers.Set(k, v)
		}
	}
	return opts
}

// document is the on-disk YAML layout. Durations are written in
// time.Duration string form so the file stays readable.
type document struct {
	Domain    string `yaml:"domain,omitempty"`
	Cache     struct {
		Enabled bool   `yaml:"enabled"`
		Size    int    `yaml:"size"`
		TTL     string `yaml:"ttl"`
	} `yaml:"cache"`
	RateLimit struct {
		Enabled      bool   `yaml:"enabled"`
		BucketSize   int    `yaml:"bucket_size"`
		RefillPeriod string `yaml:"refill_period"`
	} `yaml:"rate_limit"`
	HTTP struct {
		ConnectTimeout    string            `yaml:"connect_timeout,omitempty"`
		ReadTimeout       string            `yaml:"read_timeout,omitempty"`
		CABundle          string            `yaml:"ca_bundle,omitempty"`
		AllowPrivateIP    bool              `yaml:"allow_private_ip,omitempty"`
		InsecureAllowHTTP bool              `yaml:"insecure_allow_http,omitempty"`
		Headers           map[string]string `yaml:"headers,omitempty"`
	} `yaml:"http,omitempty"`
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// MarshalYAML implements yaml.Marshaler, rendering the configuration in
// the format Load reads.
func (c Config) MarshalYAML() (any, error) {
	var doc document
	doc.Domain = c.Domain
	doc.Cache.Enabled = c.Cache.Enabled
	doc.Cache.Size = c.Cache.Size
	doc.Cache.TTL = c.Cache.TTL.String()
	doc.RateLimit.Enabled = c.RateLimit.Enabled
	doc.RateLimit.BucketSize = c.RateLimit.BucketSize
	doc.RateLimit.RefillPeriod = c.RateLimit.RefillPeriod.String()
	doc.HTTP.ConnectTimeout = durationString(c.HTTP.ConnectTimeout)
	doc.HTTP.ReadTimeout = durationString(c.HTTP.ReadTimeout)
	doc.HTTP.CABundle = c.HTTP.CABundle
	doc.HTTP.AllowPrivateIP = c.HTTP.AllowPrivateIP
	doc.HTTP.InsecureAllowHTTP = c.HTTP.InsecureAllowHTTP
	doc.HTTP.Headers = maps.Clone(c.HTTP.Headers)
	return doc, nil
}

// Save writes the configuration to path, or to the default location when
// path is empty. Concurrent writers are serialized through a lock file next
// to the configuration.
func (c *Config) Save(ctx context.Context, path string) (string, error) {
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return "", fmt.Errorf("unable to fetch config path: %w", err)
		}
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("error serializing config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}

	fileLock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return "", fmt.Errorf("failed to acquire lock: timeout after %v", lockTimeout)
	}
	defer func() { _ = fileLock.Unlock() }()

	if err := os.WriteFile(path, out, 0600); err != nil {
		return "", fmt.Errorf("error writing config file: %w", err)
	}
	return path, nil
}
