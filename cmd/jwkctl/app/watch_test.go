// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/jwkprovider/pkg/config"
	"github.com/stacklok/jwkprovider/pkg/jwks"
	"github.com/stacklok/jwkprovider/pkg/telemetry"
	"github.com/stacklok/jwkprovider/pkg/watch"
	"github.com/stacklok/jwkprovider/pkg/watch/mocks"
)

//nolint:paralleltest // commands bind flags on the global viper instance
func TestMetricsRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockKeyLister(ctrl)
	key, err := jwks.ParseKey([]byte(`{"kty":"oct","kid":"a"}`))
	require.NoError(t, err)
	lister.EXPECT().GetAll(gomock.Any()).Return([]*jwks.Key{key}, nil)

	tel, err := telemetry.NewProvider(context.Background(), telemetry.WithEnablePrometheusMetricsPath(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	watcher, err := watch.New(lister, watch.WithMeterProvider(tel.MeterProvider()))
	require.NoError(t, err)

	router := newMetricsRouter(tel.PrometheusHandler(), watcher)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err = watcher.Poll(context.Background())
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jwks_watch_keys")
}

//nolint:paralleltest // commands bind flags on the global viper instance
func TestRunWatch_StopsOnCancel(t *testing.T) {
	server := newTestJWKSServer(t, "a")

	settings := config.NewViper()
	settings.Set("domain", server.URL)
	cli := &cliContext{settings: settings, configPath: emptyConfig(t)}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := runWatch(ctx, cli, watchFlags{interval: 20 * time.Millisecond, maxTries: 1})
	require.NoError(t, err)
}

//nolint:paralleltest // commands bind flags on the global viper instance
func TestServeMetrics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveMetrics(ctx, "127.0.0.1:0", http.NotFoundHandler())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}

//nolint:paralleltest // commands bind flags on the global viper instance
func TestServeMetrics_InvalidAddress(t *testing.T) {
	err := serveMetrics(context.Background(), "not-an-address", http.NotFoundHandler())
	require.Error(t, err)
}
