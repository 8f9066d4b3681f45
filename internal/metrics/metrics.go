// Package metrics holds the Prometheus collectors for the engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prayer_times"

// Metrics is a set of collectors on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	syncRuns     *prometheus.CounterVec
	syncTasks    *prometheus.CounterVec
	syncDuration prometheus.Histogram
	deliveries   *prometheus.CounterVec
	computations *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Notification sync runs by outcome.",
		}, []string{"outcome"}),
		syncTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Notification tasks touched by sync, by operation.",
		}, []string{"op"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Time spent in a notification sync.",
			Buckets:   prometheus.DefBuckets,
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Notification deliveries by kind and outcome.",
		}, []string{"kind", "outcome"}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_computations_total",
			Help:      "Prayer window computations by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route and status.",
		}, []string{"route", "status"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncRuns,
		m.syncTasks,
		m.syncDuration,
		m.deliveries,
		m.computations,
		m.httpRequests,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveSync records one orchestrator run.
func (m *Metrics) ObserveSync(created, cancelled, kept, failed int, elapsed time.Duration, err error) {
	m.syncRuns.WithLabelValues(outcome(err)).Inc()
	m.syncTasks.WithLabelValues("created").Add(float64(created))
	m.syncTasks.WithLabelValues("cancelled").Add(float64(cancelled))
	m.syncTasks.WithLabelValues("kept").Add(float64(kept))
	m.syncTasks.WithLabelValues("failed").Add(float64(failed))
	m.syncDuration.Observe(elapsed.Seconds())
}

// ObserveDelivery records one notification delivery.
func (m *Metrics) ObserveDelivery(kind string, err error) {
	m.deliveries.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveComputation records one prayer window computation.
func (m *Metrics) ObserveComputation(err error) {
	m.computations.WithLabelValues(outcome(err)).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
