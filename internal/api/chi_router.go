// Waypost - Embedded Viewer Visitor Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypost

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/waypost/internal/middleware"
)

// Router assembles the chi route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, chiMw *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: chiMw}
}

// SetupChi returns the HTTP handler of the whole service.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.With(chimiddleware.Compress(5, "text/html")).Get("/", router.handler.Shell)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", router.handler.HealthLive)
			r.Get("/ready", router.handler.HealthReady)
		})

		r.Route("/track", func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimit())
			r.Post("/open", router.handler.TrackOpen)
			r.Route("/{loadID}", func(r chi.Router) {
				r.Post("/visibility", router.handler.TrackVisibility)
				r.Post("/unload", router.handler.TrackUnload)
				r.Post("/message", router.handler.TrackMessage)
				r.Post("/heartbeat", router.handler.TrackHeartbeat)
			})
		})

		r.Get("/stats/unique", router.handler.UniqueVisitors)
		r.Get("/ws", router.handler.WebSocket)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Not found")
	})

	return r
}
