// Package observability provides Prometheus metrics for a batch run.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"ytbatch/internal/consts"
	"ytbatch/internal/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt results used as the "result" label of FetchAttempts.
const (
	ResultSuccess = "success"
)

// Metrics holds all metrics of one batch run. Each instance owns its registry,
// so several runs in one process never collide.
type Metrics struct {
	Registry *prometheus.Registry

	// Item metrics
	ItemsTotal      prometheus.Gauge
	ItemsCompleted  prometheus.Counter
	ItemsFailed     prometheus.Counter
	ItemsInProgress prometheus.Gauge
	ItemDuration    prometheus.Histogram

	// Fetch metrics
	FetchAttempts *prometheus.CounterVec
	Retries       prometheus.Counter

	// Proxy metrics
	ProxiesAvailable prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ItemsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: consts.AppName,
			Subsystem: "items",
			Name:      "queued",
			Help:      "Number of work items in the batch",
		}),
		ItemsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: consts.AppName,
			Subsystem: "items",
			Name:      "completed_total",
			Help:      "Total number of items downloaded successfully",
		}),
		ItemsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: consts.AppName,
			Subsystem: "items",
			Name:      "failed_total",
			Help:      "Total number of items that failed after all attempts",
		}),
		ItemsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: consts.AppName,
			Subsystem: "items",
			Name:      "in_progress",
			Help:      "Number of items currently being processed",
		}),
		ItemDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: consts.AppName,
			Subsystem: "items",
			Name:      "duration_seconds",
			Help:      "Histogram of per item processing time in seconds, retries included",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: consts.AppName,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "Total number of fetch attempts by mode and result",
		}, []string{"mode", "result"}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: consts.AppName,
			Subsystem: "fetch",
			Name:      "retries_total",
			Help:      "Total number of retries scheduled",
		}),

		ProxiesAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: consts.AppName,
			Subsystem: "proxy",
			Name:      "available",
			Help:      "Number of currently available proxies",
		}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: consts.AppName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of status server requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: consts.AppName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of status server request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Handler returns the Prometheus HTTP handler for this run's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ItemTimer marks an item as started and returns a function recording its duration.
func (m *Metrics) ItemTimer() func() {
	start := time.Now()

	m.ItemsInProgress.Inc()

	return func() {
		m.ItemsInProgress.Dec()
		m.ItemDuration.Observe(time.Since(start).Seconds())
	}
}

// SetItemsTotal sets the batch size.
func (m *Metrics) SetItemsTotal(n int) {
	m.ItemsTotal.Set(float64(n))
}

// RecordItemCompleted records an item that produced a file.
func (m *Metrics) RecordItemCompleted() {
	m.ItemsCompleted.Inc()
}

// RecordItemFailed records an item that failed after all attempts.
func (m *Metrics) RecordItemFailed() {
	m.ItemsFailed.Inc()
}

// RecordAttempt records one fetch attempt outcome.
func (m *Metrics) RecordAttempt(mode entity.Mode, out entity.Outcome) {
	result := ResultSuccess
	if !out.OK() {
		result = string(out.Kind)
	}

	m.FetchAttempts.WithLabelValues(string(mode), result).Inc()
}

// RecordRetry records a scheduled retry.
func (m *Metrics) RecordRetry() {
	m.Retries.Inc()
}

// SetProxiesAvailable sets the number of available proxies.
func (m *Metrics) SetProxiesAvailable(count int) {
	m.ProxiesAvailable.Set(float64(count))
}

// RecordHTTPRequest records status server request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
