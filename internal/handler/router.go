package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/angeloszaimis/healthdash/internal/metrics"
)

// NewRouter wires the backend routes. Every route except /metrics is
// instrumented on registry.
func NewRouter(logger *slog.Logger, h *StatusHandler, registry *metrics.Registry) *mux.Router {
	r := mux.NewRouter()
	r.Use(LogRequests(logger))

	r.HandleFunc("/api/status", registry.Middleware("/api/status", h.Status)).Methods(http.MethodGet)
	r.HandleFunc("/api/health", registry.Middleware("/api/health", h.Status)).Methods(http.MethodGet)
	r.HandleFunc("/api/system", registry.Middleware("/api/system", h.System)).Methods(http.MethodGet)

	r.Handle("/metrics", registry.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", registry.Middleware("/", h.Index)).Methods(http.MethodGet)

	return r
}
