// ABOUTME: chi router for the fieldbook HTTP API
// ABOUTME: Applies request IDs, logging, metrics, the auth gate and auth rate limits, then mounts the handlers

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/2389/fieldbook/internal/auth"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}

	var gateRecorder auth.GateRecorder
	if s.metrics != nil {
		gateRecorder = s.metrics
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Gate(s.issuer, s.logger, gateRecorder))

		r.Group(func(r chi.Router) {
			if rl := s.config.Auth.RateLimit; rl.Enabled {
				r.Use(httprate.Limit(rl.Requests, rl.Window,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(s.handleRateLimited),
				))
			}
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
		})

		// Reads of a single plot or action may be opened to anonymous callers.
		r.Group(func(r chi.Router) {
			if !s.config.Auth.AllowAnonymous {
				r.Use(auth.RequireIdentity())
			}
			r.Get("/plots/{plotID}", s.handleGetPlot)
			r.Get("/actions/{actionID}", s.handleGetAction)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity())

			r.Get("/me", s.handleMe)
			r.Delete("/me", s.handleDeleteMe)

			r.Get("/plots", s.handleListPlots)
			r.Post("/plots", s.handleCreatePlot)
			r.Put("/plots/{plotID}", s.handleUpdatePlot)
			r.Delete("/plots/{plotID}", s.handleDeletePlot)
			r.Post("/plots/{plotID}/actions", s.handleAddAction)

			r.Delete("/actions/{actionID}", s.handleDeleteAction)
		})
	})

	return r
}

// instrument logs every request and records it in the metrics, labeled by
// the matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	logger := s.logger.With("component", "http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, status, elapsed)
		}

		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
