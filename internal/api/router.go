package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nmslite/drivetemp/internal/auth"
	"github.com/nmslite/drivetemp/internal/metrics"
	"github.com/nmslite/drivetemp/internal/middleware"
	"github.com/nmslite/drivetemp/internal/pipeline"
	"github.com/nmslite/drivetemp/internal/sink"
)

// Dependencies are shared by all handlers.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	// Auth protects the convert endpoint. Nil leaves it public and
	// disables login.
	Auth    *auth.Service
	Metrics *metrics.Recorder
	// Sinks receive every successful run after the response body is
	// prepared.
	Sinks        []sink.Sink
	MaxBodyBytes int64
	// Ready reports whether backing services are reachable.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter creates and configures the API router
func NewRouter(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	healthHandler := NewHealthHandler(deps.Ready)
	convertHandler := NewConvertHandler(deps)

	// Public routes (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Auth != nil {
			r.Post("/login", NewLoginHandler(deps.Auth).Login)
		}

		r.Group(func(r chi.Router) {
			if deps.Auth != nil {
				r.Use(middleware.JWTAuth(deps.Auth))
			}
			r.Post("/convert", convertHandler.Convert)
		})
	})

	return r
}
