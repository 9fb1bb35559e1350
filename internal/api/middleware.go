// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ayasato/oneiro/internal/logging"
	"github.com/ayasato/oneiro/internal/metrics"
)

// requestIDHeader is the response header carrying the request ID.
const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a unique ID, echoes it in the response
// header and threads it through the context for request-scoped logging.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = logging.NewRequestID()
			}

			w.Header().Set(requestIDHeader, id)
			ctx := logging.ContextWithRequestID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrometheusMetrics records request duration labeled by method, route
// pattern and status. The route pattern (not the raw path) keeps label
// cardinality bounded.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			metrics.HTTPRequestDuration.WithLabelValues(
				r.Method,
				pattern,
				strconv.Itoa(ww.Status()),
			).Observe(time.Since(start).Seconds())
		})
	}
}
