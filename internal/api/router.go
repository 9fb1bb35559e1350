// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

// Package api provides the HTTP surface of the engine using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayasato/oneiro/internal/config"
)

// Router assembles the HTTP handler tree.
type Router struct {
	cfg     *config.Config
	handler *Handler
}

// NewRouter creates a router over the given service.
func NewRouter(cfg *config.Config, service Service) *Router {
	return &Router{
		cfg:     cfg,
		handler: NewHandler(cfg, service),
	}
}

// Setup builds the full route tree with the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	if len(router.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: router.cfg.Server.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         86400,
		}))
	}

	r.Get("/healthz", router.handler.HealthLive)
	r.Get("/readyz", router.handler.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if limit := router.cfg.Server.RateLimitPerMinute; limit > 0 {
			r.Use(httprate.Limit(limit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
			))
		}
		r.Use(PrometheusMetrics())

		r.Post("/recommendations", router.handler.Recommendations)
		r.Post("/feedback", router.handler.Feedback)

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", router.handler.Profile)
			r.Delete("/", router.handler.DeleteProfile)
			r.Get("/insights", router.handler.Insights)
			r.Post("/bootstrap", router.handler.Bootstrap)
			r.Post("/reset", router.handler.Reset)
			r.Post("/revert", router.handler.Revert)
		})

		r.Get("/status", router.handler.Status)
	})

	return r
}
