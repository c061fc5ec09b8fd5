package handler

import (
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/angeloszaimis/healthdash/internal/dashboard"
	"github.com/angeloszaimis/healthdash/internal/status"
)

//go:embed templates/index.html
var templates embed.FS

// Source provides the data the backend serves.
type Source interface {
	Status() []status.Service
	SystemInfo() status.SystemInfo
}

// ServiceCounter observes how many services each status answer carried.
type ServiceCounter interface {
	SetServices(n int)
}

type StatusHandler struct {
	logger  *slog.Logger
	source  Source
	counter ServiceCounter
	page    *template.Template
}

func NewStatusHandler(logger *slog.Logger, source Source, counter ServiceCounter) *StatusHandler {
	return &StatusHandler{
		logger:  logger,
		source:  source,
		counter: counter,
		page:    template.Must(template.ParseFS(templates, "templates/index.html")),
	}
}

// Status writes the service collection as a JSON array.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	services := h.source.Status()
	if services == nil {
		services = []status.Service{}
	}
	if h.counter != nil {
		h.counter.SetServices(len(services))
	}
	h.writeJSON(w, services)
}

// System writes the backend metadata.
func (h *StatusHandler) System(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.source.SystemInfo())
}

// Index renders the status page. The page carries the current table; the
// terminal dashboard is the live view.
func (h *StatusHandler) Index(w http.ResponseWriter, r *http.Request) {
	data := struct {
		View dashboard.View
		Info status.SystemInfo
	}{
		View: dashboard.BuildView(h.source.Status()),
		Info: h.source.SystemInfo(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("Rendering status page failed", slog.Any("err", err))
	}
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Encoding response failed", slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// LogRequests logs every request the way the backend always has.
func LogRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("Received request",
				slog.String("from", extractClientIP(r)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("proto", r.Proto),
				slog.String("user_agent", r.UserAgent()))

			next.ServeHTTP(w, r)
		})
	}
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}
