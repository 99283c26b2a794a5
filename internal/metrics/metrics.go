// Package metrics exposes Prometheus instrumentation for the Trove server.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds all collectors for the server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Domain
	ItemsReported   prometheus.Counter
	ItemsClaimed    prometheus.Counter
	ItemsRemoved    prometheus.Counter
	ClaimConflicts  prometheus.Counter
	UsersRegistered prometheus.Counter

	// Sweeper
	SweepRuns          prometheus.Counter
	SweepImagesDeleted prometheus.Counter
	SweepLastRun       prometheus.Gauge
	SweepOrphans       prometheus.Gauge
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trove",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		httpRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "trove",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),

		ItemsReported: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "items",
			Name:      "reported_total",
			Help:      "Total found items reported.",
		}),

		ItemsClaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "items",
			Name:      "claimed_total",
			Help:      "Total items successfully claimed.",
		}),

		ItemsRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "items",
			Name:      "removed_total",
			Help:      "Total items removed by their finder.",
		}),

		ClaimConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "items",
			Name:      "claim_conflicts_total",
			Help:      "Claim attempts rejected because the item was no longer open.",
		}),

		UsersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "users",
			Name:      "registered_total",
			Help:      "Total user registrations.",
		}),

		SweepRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Total orphaned image sweep runs.",
		}),

		SweepImagesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "trove",
			Subsystem: "sweeper",
			Name:      "images_deleted_total",
			Help:      "Total orphaned images deleted by the sweeper.",
		}),

		SweepLastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "trove",
			Subsystem: "sweeper",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix timestamp of the last completed sweep.",
		}),

		SweepOrphans: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "trove",
			Subsystem: "sweeper",
			Name:      "orphans",
			Help:      "Orphaned images found during the last sweep.",
		}),
	}
}

// Middleware instruments HTTP handlers. Route patterns come from chi so
// cardinality stays bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chiRoutePattern(r)
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func chiRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server runs a standalone metrics HTTP server on the given port.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer creates a metrics server exposing /metrics.
func NewServer(m *Metrics, port int, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics_server").Logger(),
	}
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
