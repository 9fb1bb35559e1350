// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

// Package main is the entry point for the Oneiro server.
//
// Oneiro is a locally-running, single-user adaptive personalization
// engine. It learns a taste profile from explicit feedback and watch
// history, scores recommendation candidates through a multi-stage
// pipeline, and adapts its scoring weights online.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file and environment (koanf)
//  2. Logging: zerolog, JSON or console format
//  3. Storage: embedded BadgerDB profile store
//  4. Library: local JSON media library (metadata, history, feedback)
//  5. Engine: profile lifecycle, scoring, weight adapter, clustering
//  6. HTTP Server: chi REST API with Prometheus metrics
//  7. Supervisor: suture tree running the server and storage GC loop
//
// # Configuration
//
// Configuration is loaded via koanf with layered sources (highest
// priority wins):
//   - Environment variables (ONEIRO_SECTION__KEY, plus short aliases
//     PORT, HOST, DATA_DIR, LIBRARY, LOG_LEVEL, USER_ID)
//   - Config file (config.yaml, or the path in ONEIRO_CONFIG)
//   - Built-in defaults
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the HTTP
// server stops accepting connections, in-flight requests get the
// configured shutdown timeout, pending profile mutations drain, and the
// database closes cleanly.
//
// # Example Usage
//
//	export DATA_DIR=/data/oneiro
//	export LIBRARY=/data/oneiro/library.json
//	./oneiro
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ayasato/oneiro/internal/api"
	"github.com/ayasato/oneiro/internal/config"
	"github.com/ayasato/oneiro/internal/dream"
	"github.com/ayasato/oneiro/internal/library"
	"github.com/ayasato/oneiro/internal/logging"
	"github.com/ayasato/oneiro/internal/storage"
	"github.com/ayasato/oneiro/internal/supervisor"
	"github.com/ayasato/oneiro/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("data_dir", cfg.Storage.Dir).
		Str("library", cfg.Library.Path).
		Str("user", cfg.UserID).
		Msg("Starting Oneiro")

	store, err := storage.NewBadgerStore(storage.BadgerOptions{
		Dir:        cfg.Storage.Dir,
		SyncWrites: true,
	}, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open profile store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing profile store")
		}
	}()

	lib, err := library.Open(cfg.Library.Path, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open media library")
	}
	logging.Info().Int("media", lib.Size()).Msg("Media library opened")

	guard := dream.DefaultLookupGuardConfig()
	guard.RequestsPerSecond = cfg.Lookup.RequestsPerSecond
	guard.Burst = cfg.Lookup.Burst
	guard.FailureThreshold = cfg.Lookup.FailureThreshold
	guard.Timeout = cfg.Lookup.BreakerTimeout
	guard.Interval = cfg.Lookup.BreakerInterval

	engine, err := dream.NewEngine(&cfg.Engine, store, dream.Dependencies{
		Lookup:   lib,
		Feedback: lib,
		History:  lib,
		Guard:    &guard,
	}, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to construct engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing engine")
		}
	}()

	router := api.NewRouter(cfg, engine)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)

	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewGCService(
		store, cfg.Storage.GCInterval, cfg.Storage.GCDiscardRatio,
		logging.Logger()))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Server listening")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor exited with error")
		os.Exit(1)
	}

	logging.Info().Msg("Shutdown complete")
}
