// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/waypost/internal/analytics"
	"github.com/tomtom215/waypost/internal/api"
	"github.com/tomtom215/waypost/internal/beacon"
	"github.com/tomtom215/waypost/internal/config"
	"github.com/tomtom215/waypost/internal/kvstore"
	"github.com/tomtom215/waypost/internal/locate"
	"github.com/tomtom215/waypost/internal/logging"
	"github.com/tomtom215/waypost/internal/supervisor"
	"github.com/tomtom215/waypost/internal/supervisor/services"
	"github.com/tomtom215/waypost/internal/tracker"
	ws "github.com/tomtom215/waypost/internal/websocket"
)

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

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Waypost stopped with an error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring of every component
func run(cfg *config.Config) error {
	logging.Info().
		Str("viewer_url", cfg.Viewer.URL).
		Str("addr", cfg.Server.Addr()).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("analytics_transport", cfg.Analytics.Transport).
		Msg("Starting Waypost")

	store, err := kvstore.Open(kvstore.Options{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Str("path", cfg.Store.Path).Msg("Store opened")

	locator := locate.NewFromConfig(cfg.Geo)

	bus, err := analytics.NewBus(cfg.Analytics)
	if err != nil {
		return fmt.Errorf("analytics bus: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := bus.Close(ctx); err != nil {
			logging.Error().Err(err).Msg("Error closing analytics bus")
		}
	}()

	emitter := analytics.NewEmitter(bus.Publisher, bus.Topic)
	recorder := analytics.NewRecorder(bus.Subscriber, bus.Topic)

	hub := ws.NewHub()

	registry := tracker.NewRegistry(tracker.Deps{
		Store:              store,
		Locator:            locator,
		Sink:               emitter,
		Broadcaster:        hub,
		Location:           cfg.Tracker.Location(),
		EngagementInterval: cfg.Tracker.EngagementInterval,
	}, tracker.RegistryConfig{
		IdleTimeout:  cfg.Tracker.IdleTimeout,
		ReapInterval: cfg.Tracker.ReapInterval,
		TombstoneTTL: cfg.Tracker.TombstoneTTL,
	})

	tokens, err := beacon.NewManager(cfg.Security)
	if err != nil {
		return fmt.Errorf("beacon tokens: %w", err)
	}

	handler := api.NewHandler(cfg, registry, tokens, store, hub)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Security)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	tree.Add(supervisor.DataLayer, services.NewStoreGCService(store, cfg.Store.GCInterval, cfg.Store.GCDiscardRatio))
	tree.Add(supervisor.MessagingLayer, recorder)
	tree.Add(supervisor.MessagingLayer, services.NewWebSocketHubService(hub))
	tree.Add(supervisor.MessagingLayer, registry)
	tree.Add(supervisor.APILayer, services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services to stop")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", treeErr)
	}
	return nil
}
