// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/craftstats/internal/api"
	"github.com/tomtom215/craftstats/internal/config"
	"github.com/tomtom215/craftstats/internal/dashboard"
	"github.com/tomtom215/craftstats/internal/logging"
	"github.com/tomtom215/craftstats/internal/statsclient"
	"github.com/tomtom215/craftstats/internal/supervisor"
	"github.com/tomtom215/craftstats/internal/supervisor/services"
	ws "github.com/tomtom215/craftstats/internal/websocket"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("stats_api", cfg.StatsAPI.BaseURL).
		Str("addr", cfg.Server.Addr()).
		Int("max_buckets", cfg.Engine.MaxBuckets).
		Dur("rank_debounce", cfg.Engine.RankDebounce).
		Msg("Starting craftstats")

	statsClient := statsclient.NewCircuitBreakerClient(&cfg.StatsAPI)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := buildSupervisorTree(cfg, statsClient)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// newControllerFactory binds every new websocket session to a dashboard
// controller reading from fetcher.
func newControllerFactory(fetcher dashboard.Fetcher, engine *config.EngineConfig) ws.ControllerFactory {
	return func(sink dashboard.ChartSink, sessionID string) *dashboard.Controller {
		opts := dashboard.OptionsFromConfig(engine)
		opts.SessionID = sessionID
		return dashboard.NewController(fetcher, sink, opts)
	}
}

// newHTTPServer builds the chi router and the server around it.
func newHTTPServer(cfg *config.Config, upstream api.Upstream, hub *ws.Hub) *http.Server {
	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server))
	handler := api.NewHandler(upstream, hub, mw, version)
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw).SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
}

// buildSupervisorTree wires the hub, the upstream probe and the HTTP
// server into a supervisor tree. Breaker transitions are pushed to every
// open dashboard.
func buildSupervisorTree(cfg *config.Config, statsClient *statsclient.CircuitBreakerClient) (*supervisor.SupervisorTree, error) {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(newControllerFactory(statsClient, &cfg.Engine))
	statsClient.OnStateChange(hub.BroadcastUpstreamStatus)

	tree.AddSessionService(services.NewWebSocketHubService(hub))
	tree.AddSessionService(services.NewUpstreamProbeService(statsClient, cfg.StatsAPI.ProbeInterval))
	tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg, statsClient, hub), cfg.Server.ShutdownTimeout))

	return tree, nil
}
