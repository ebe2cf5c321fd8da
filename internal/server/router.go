// Package server assembles the HTTP routes.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/eventlogs/internal/handlers"
	"github.com/telhawk-systems/eventlogs/internal/middleware"
)

// NewRouter constructs a ServeMux with the eventlogs API registered. The
// prometheus endpoint is mounted at /metrics when withMetrics is set.
func NewRouter(h *handlers.Handler, withMetrics bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.SearchEvents)
	mux.HandleFunc("/events/export", h.ExportEvents)
	mux.HandleFunc("/events/ingest", h.IngestEvents)
	mux.HandleFunc("/settings", h.Settings)
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	if withMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return middleware.RequestID(mux)
}
