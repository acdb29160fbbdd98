// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watch polls a JWKS endpoint and reports key rotations.
package watch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	jwkerrors "github.com/stacklok/jwkprovider/pkg/errors"
	"github.com/stacklok/jwkprovider/pkg/jwks"
	"github.com/stacklok/jwkprovider/pkg/logger"
	"github.com/stacklok/jwkprovider/pkg/networking"
)

//go:generate mockgen -destination=mocks/mock_lister.go -package=mocks -source=watcher.go KeyLister

const (
	// DefaultInterval is the time between two polls.
	DefaultInterval = time.Minute
	// DefaultMaxTries bounds the attempts made for one poll when the
	// endpoint cannot be reached.
	DefaultMaxTries = 3

	defaultRetryInterval = 500 * time.Millisecond
	instrumentationName  = "github.com/stacklok/jwkprovider/pkg/watch"
)

// KeyLister returns the full key set. *jwks.URLProvider implements it.
type KeyLister interface {
	GetAll(ctx context.Context) ([]*jwks.Key, error)
}

// Change describes the difference between two consecutive key sets.
type Change struct {
	Added   []string
	Removed []string
	Keys    []*jwks.Key
}

// Changed reports whether any key was added or removed.
func (c Change) Changed() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0
}

// Option configures a Watcher.
type Option func(*Watcher) error

// WithInterval sets the time between polls.
func WithInterval(interval time.Duration) Option {
	return func(w *Watcher) error {
		if interval <= 0 {
			return jwkerrors.NewConfigurationError(fmt.Sprintf("watch interval must be positive, got %s", interval), nil)
		}
		w.interval = interval
		return nil
	}
}

// WithRetry sets how often and how quickly a poll is retried when the
// endpoint cannot be reached.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(w *Watcher) error {
		if maxTries == 0 {
			return jwkerrors.NewConfigurationError("watch max tries must be at least 1", nil)
		}
		w.maxTries = maxTries
		w.retryInterval = initialInterval
		return nil
	}
}

// WithOnChange registers a callback invoked after every poll that added or
// removed keys, including the first successful one.
func WithOnChange(fn func(Change)) Option {
	return func(w *Watcher) error {
		w.onChange = fn
		return nil
	}
}

// WithMeterProvider sets where watcher metrics are reported.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(w *Watcher) error {
		w.meterProvider = mp
		return nil
	}
}

// Watcher periodically fetches the key set and diffs it against the
// previous one.
type Watcher struct {
	lister        KeyLister
	interval      time.Duration
	maxTries      uint
	retryInterval time.Duration
	onChange      func(Change)
	meterProvider metric.MeterProvider

	keyCount  metric.Int64Gauge
	rotations metric.Int64Counter
	failures  metric.Int64Counter

	mu    sync.Mutex
	known []string
}

// New creates a watcher for lister.
func New(lister KeyLister, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		lister:        lister,
		interval:      DefaultInterval,
		maxTries:      DefaultMaxTries,
		retryInterval: defaultRetryInterval,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	meter := w.meterProvider.Meter(instrumentationName)
	var err error
	if w.keyCount, err = meter.Int64Gauge("jwks_watch_keys",
		metric.WithDescription("Number of keys in the last fetched key set")); err != nil {
		return nil, fmt.Errorf("failed to create key count gauge: %w", err)
	}
	if w.rotations, err = meter.Int64Counter("jwks_watch_rotations",
		metric.WithDescription("Number of polls that observed added or removed keys")); err != nil {
		return nil, fmt.Errorf("failed to create rotations counter: %w", err)
	}
	if w.failures, err = meter.Int64Counter("jwks_watch_failures",
		metric.WithDescription("Number of polls that failed after all retries")); err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}

	return w, nil
}

// Known returns the key IDs seen by the last successful poll, sorted.
func (w *Watcher) Known() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.known)
}

// Poll fetches the key set once and returns how it differs from the
// previous poll. Network errors are retried with exponential backoff unless
// the endpoint answered with a client error; any other error fails the poll
// immediately.
func (w *Watcher) Poll(ctx context.Context) (Change, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = w.retryInterval
	expBackoff.MaxInterval = 30 * w.retryInterval
	expBackoff.Reset()

	attempt := 0
	keys, err := backoff.Retry(ctx, func() ([]*jwks.Key, error) {
		attempt++
		keys, err := w.lister.GetAll(ctx)
		if err != nil {
			if jwkerrors.IsNetwork(err) && networking.IsTemporary(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return keys, nil
	},
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(w.maxTries),
		backoff.WithNotify(func(err error, duration time.Duration) {
			logger.Debugw("JWKS poll failed, retrying", "attempt", attempt, "retry_in", duration, "error", err)
		}),
	)
	if err != nil {
		w.failures.Add(ctx, 1)
		return Change{}, err
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, key.ID())
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	w.mu.Lock()
	change := Change{
		Added:   difference(ids, w.known),
		Removed: difference(w.known, ids),
		Keys:    keys,
	}
	w.known = ids
	w.mu.Unlock()

	w.keyCount.Record(ctx, int64(len(keys)))
	if change.Changed() {
		w.rotations.Add(ctx, 1)
	}
	return change, nil
}

// Run polls immediately and then every interval until ctx is done. Failed
// polls are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	change, err := w.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnw("JWKS poll failed", "error", err)
		}
		return
	}
	if !change.Changed() {
		logger.Debugw("JWKS unchanged", "keys", len(change.Keys))
		return
	}

	logger.Infow("JWKS changed", "added", change.Added, "removed", change.Removed, "keys", len(change.Keys))
	if w.onChange != nil {
		w.onChange(change)
	}
}

// difference returns the sorted elements of a missing from b. Both inputs
// must be sorted.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if _, found := slices.BinarySearch(b, s); !found {
			out = append(out, s)
		}
	}
	return out
}
