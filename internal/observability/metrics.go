// Package observability exposes the API process metrics on a private registry.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/belezaflow/belezaflow/internal/booking"
)

const namespace = "belezaflow"

// Metrics collects the Prometheus metrics of the API process.
type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge

	saves        *prometheus.CounterVec
	saveDuration prometheus.Histogram
}

// NewMetrics builds a registry with the Go runtime collectors and the HTTP and save metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration per route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"route"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Record saves to the key-value store by outcome.",
		}, []string{"status"}),
		saveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Duration of record saves to the key-value store.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware counts requests per chi route pattern, so ids never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSave implements booking.SaveObserver.
func (m *Metrics) ObserveSave(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.saves.WithLabelValues(status).Inc()
	m.saveDuration.Observe(elapsed.Seconds())
}

// RecordSource is read on every scrape.
type RecordSource interface {
	Snapshot() booking.State
}

// SavedVersioner reports the last store version written to durable storage.
type SavedVersioner interface {
	SavedVersion() uint64
}

// WatchRecords exports record counts and the number of unsaved store versions.
// saved may be nil when nothing persists the store.
func (m *Metrics) WatchRecords(src RecordSource, saved SavedVersioner) {
	if m == nil || src == nil {
		return
	}
	m.registry.MustRegister(&recordCollector{src: src, saved: saved})
}

// Registerer exposes the registry for collectors owned by other packages.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

var (
	recordsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "records"),
		"Records held by the store by kind.",
		[]string{"kind"}, nil)
	unsavedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "unsaved_versions"),
		"Store versions applied in memory but not yet saved.",
		nil, nil)
)

type recordCollector struct {
	src   RecordSource
	saved SavedVersioner
}

func (c *recordCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- recordsDesc
	if c.saved != nil {
		ch <- unsavedDesc
	}
}

func (c *recordCollector) Collect(ch chan<- prometheus.Metric) {
	state := c.src.Snapshot()
	pending, done := 0, 0
	for _, a := range state.Appointments {
		if a.IsDone() {
			done++
		} else {
			pending++
		}
	}
	low := 0
	for _, p := range state.Products {
		if booking.IsLowStock(p) {
			low++
		}
	}
	ch <- prometheus.MustNewConstMetric(recordsDesc, prometheus.GaugeValue, float64(pending), "appointments_pending")
	ch <- prometheus.MustNewConstMetric(recordsDesc, prometheus.GaugeValue, float64(done), "appointments_done")
	ch <- prometheus.MustNewConstMetric(recordsDesc, prometheus.GaugeValue, float64(len(state.Products)), "products")
	ch <- prometheus.MustNewConstMetric(recordsDesc, prometheus.GaugeValue, float64(low), "products_low_stock")
	if c.saved != nil {
		unsaved := uint64(0)
		if saved := c.saved.SavedVersion(); state.Version > saved {
			unsaved = state.Version - saved
		}
		ch <- prometheus.MustNewConstMetric(unsavedDesc, prometheus.GaugeValue, float64(unsaved))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
