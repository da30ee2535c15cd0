// Pulseboard - Portfolio Admin Dashboard Metrics Engine
// Copyright 2026 Mindtree Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindtree-labs/pulseboard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mindtree-labs/pulseboard/internal/auth"
	"github.com/mindtree-labs/pulseboard/internal/config"
	"github.com/mindtree-labs/pulseboard/internal/middleware"
)

// Router builds the HTTP handler tree.
type Router struct {
	handler *Handler
	authMW  *auth.Middleware
	cfg     *config.SecurityConfig
}

// NewRouter wires routes around a handler.
func NewRouter(handler *Handler, authMW *auth.Middleware, cfg *config.SecurityConfig) *Router {
	return &Router{handler: handler, authMW: authMW, cfg: cfg}
}

// Setup returns the complete route tree.
//
// Route groups and their protection:
//
//	/api/v1/health/*       public, generous rate limit
//	/api/v1/auth/login     public, strict rate limit
//	/api/v1/track          public, per-IP rate limit
//	/api/v1/contact        public, strict rate limit
//	/api/v1/*              bearer token required
//	/metrics               Prometheus exposition
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "DNT", "Sec-GPC"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, rt.cfg.RateLimitWindow))
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, rt.cfg.RateLimitWindow))
		r.Post("/login", rt.handler.Login)
	})

	// Public ingest endpoints for the portfolio site.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Post("/api/v1/track", rt.handler.Track)
		r.Post("/api/v1/contact", rt.handler.ContactCreate)
	})

	// Authenticated dashboard API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByRealIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(rt.authMW.Authenticate)

		r.Get("/metrics/snapshot", rt.handler.MetricsSnapshot)
		r.Get("/ws", rt.handler.WebSocket)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", rt.handler.ProjectsList)
			r.Post("/", rt.handler.ProjectCreate)
			r.Put("/{id}", rt.handler.ProjectUpdate)
			r.Patch("/{id}/visibility", rt.handler.ProjectSetVisibility)
			r.Delete("/{id}", rt.handler.ProjectDelete)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Get("/", rt.handler.MessagesList)
			r.Patch("/{id}/read", rt.handler.MessageMarkRead)
			r.Post("/{id}/reply", rt.handler.MessageReply)
		})

		r.Route("/media", func(r chi.Router) {
			r.Get("/", rt.handler.MediaList)
			r.Post("/", rt.handler.MediaCreate)
			r.Delete("/{id}", rt.handler.MediaDelete)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
