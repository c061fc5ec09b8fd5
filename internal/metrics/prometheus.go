package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the prometheus instrumentation of the status backend on
// a private registry, so tests can build as many as they like.
type Registry struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	services prometheus.Gauge
}

func NewRegistry(namespace string) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		services: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services_reported",
			Help:      "Number of services in the last status answer.",
		}),
	}

	r.registry.MustRegister(r.requests, r.duration, r.services)
	return r
}

// Middleware records a request counter and latency for route.
func (r *Registry) Middleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, req)

		r.requests.WithLabelValues(route, req.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		r.duration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	}
}

// SetServices records how many services the last status answer carried.
func (r *Registry) SetServices(n int) {
	r.services.Set(float64(n))
}

// Handler exposes the registry in the prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Requests returns the counter for tests and diagnostics.
func (r *Registry) Requests() *prometheus.CounterVec {
	return r.requests
}

// Services returns the services gauge.
func (r *Registry) Services() prometheus.Gauge {
	return r.services
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
