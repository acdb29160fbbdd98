// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/jwkprovider/pkg/jwks"
	"github.com/stacklok/jwkprovider/pkg/logger"
	"github.com/stacklok/jwkprovider/pkg/telemetry"
	"github.com/stacklok/jwkprovider/pkg/versions"
	"github.com/stacklok/jwkprovider/pkg/watch"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type watchFlags struct {
	interval     time.Duration
	maxTries     uint
	metricsAddr  string
	otlpEndpoint string
	otlpInsecure bool
}

func newWatchCmd(cli *cliContext) *cobra.Command {
	var flags watchFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the JWKS endpoint and report key rotations",
		Long: `Poll the JWKS endpoint at a fixed interval and log every key that is added or removed.

Unreachable endpoints are retried with exponential backoff before a poll is counted as failed.
With --metrics-addr a Prometheus /metrics endpoint and a /healthz probe are served;
with --otlp-endpoint metrics are also pushed to an OTLP collector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cli, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.interval, "interval", watch.DefaultInterval, "Time between two polls")
	cmd.Flags().UintVar(&flags.maxTries, "max-tries", watch.DefaultMaxTries, "Attempts per poll when the endpoint is unreachable")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Address to serve /metrics and /healthz on (disabled when empty)")
	cmd.Flags().StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint for metrics, e.g. localhost:4318")
	cmd.Flags().BoolVar(&flags.otlpInsecure, "otlp-insecure", false, "Use plain HTTP for the OTLP endpoint")

	return cmd
}

func runWatch(ctx context.Context, cli *cliContext, flags watchFlags) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.NewProvider(ctx,
		telemetry.WithServiceName("jwkctl"),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
		telemetry.WithOTLPEndpoint(flags.otlpEndpoint),
		telemetry.WithInsecure(flags.otlpInsecure),
		telemetry.WithEnablePrometheusMetricsPath(flags.metricsAddr != ""),
		telemetry.WithRuntimeMetrics(flags.metricsAddr != ""),
	)
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warnw("telemetry shutdown failed", "error", err)
		}
	}()

	opts := cfg.Options()
	opts.CacheEnabled = false
	opts.RateLimitEnabled = false
	opts.MeterProvider = tel.MeterProvider()
	provider, err := opts.Build()
	if err != nil {
		return err
	}
	lister, ok := provider.(*jwks.URLProvider)
	if !ok {
		return fmt.Errorf("unexpected provider type %T", provider)
	}

	watcher, err := watch.New(lister,
		watch.WithInterval(flags.interval),
		watch.WithRetry(flags.maxTries, time.Second),
		watch.WithMeterProvider(tel.MeterProvider()),
	)
	if err != nil {
		return err
	}

	logger.Infow("watching JWKS endpoint", "url", lister.URL(), "interval", flags.interval)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(gCtx)
	})
	if flags.metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gCtx, flags.metricsAddr, newMetricsRouter(tel.PrometheusHandler(), watcher))
		})
	}
	return g.Wait()
}

// newMetricsRouter serves the Prometheus handler and a readiness probe that
// succeeds once a poll has returned at least one key.
func newMetricsRouter(metrics http.Handler, watcher *watch.Watcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if len(watcher.Known()) == 0 {
			http.Error(w, "no keys fetched yet", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func serveMetrics(ctx context.Context, address string, handler http.Handler) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("serving metrics", "address", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server stopped with error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	return nil
}
