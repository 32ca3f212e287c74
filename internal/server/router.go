package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bp-management/slack-event-gateway/internal/handlers"
	"github.com/bp-management/slack-event-gateway/internal/middleware"
)

// NewRouter constructs a ServeMux with the ingress routes registered.
func NewRouter(h *handlers.EventsHandler) http.Handler {
	mux := http.NewServeMux()

	// Slack Events API endpoint
	mux.HandleFunc("/slack/events", h.HandleEvents)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
