// Package httptransport assembles the HTTP surface: one chi router carrying
// the health and metrics endpoints plus every feature handler.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coopmarket/internal/platform/metrics"
	"coopmarket/internal/platform/middleware"
	"coopmarket/internal/transport/http/shared"
)

// Registrar is any feature handler that mounts its own routes.
type Registrar interface {
	Register(r chi.Router)
}

// Options carries the router's wiring inputs.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// API handlers get the JSON middleware chain.
	API []Registrar
	// Raw handlers (the websocket relay) skip the timeout and content-type
	// wrappers that would break an upgraded connection.
	Raw []Registrar
	// Health probes for the readiness endpoint; nil probes are skipped.
	Health []func() error
}

// New builds the process router.
func New(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Latency(opts.Metrics))

	r.Get("/health", handleHealth(opts.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		for _, h := range opts.API {
			h.Register(r)
		}
	})

	for _, h := range opts.Raw {
		h.Register(r)
	}

	return r
}

func handleHealth(probes []func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, probe := range probes {
			if probe == nil {
				continue
			}
			if err := probe(); err != nil {
				shared.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
