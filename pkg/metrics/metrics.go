// Package metrics exposes Prometheus collectors for the importer and
// the HTTP API. All methods are nil-safe so callers can pass a nil
// *Metrics for zero overhead when metrics are off.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the importer's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	actions       *prometheus.CounterVec
	proposals     *prometheus.CounterVec
	feedErrors    prometheus.Counter
	notifications *prometheus.CounterVec
	tickets       prometheus.Counter
}

// New creates a Metrics instance backed by its own registry, with the
// standard Go and process collectors attached.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ixsync_import_runs_total",
				Help: "Total number of import runs by outcome",
			},
			[]string{"outcome"}, // "ok", "error"
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ixsync_import_run_duration_seconds",
				Help:    "Duration of import runs",
				Buckets: prometheus.DefBuckets,
			},
		),
		actions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ixsync_import_actions_total",
				Help: "Total number of reconciliation actions by type",
			},
			[]string{"action"}, // "add", "modify", "delete", "noop"
		),
		proposals: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ixsync_proposals_total",
				Help: "Total number of proposals persisted by state",
			},
			[]string{"state"}, // "open", "resolved", "conflicted"
		),
		feedErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ixsync_feed_errors_total",
				Help: "Total number of IX-F feed fetch or parse failures",
			},
		),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ixsync_notifications_total",
				Help: "Total number of notifications dispatched by recipient type",
			},
			[]string{"recipient"}, // "net", "ix", "ac"
		),
		tickets: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ixsync_tickets_total",
				Help: "Total number of support tickets opened",
			},
		),
	}
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one import run and its duration.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(d.Seconds())
}

// RecordAction counts a reconciliation action.
func (m *Metrics) RecordAction(action string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action).Inc()
}

// RecordProposal counts a persisted proposal by state.
func (m *Metrics) RecordProposal(state string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(state).Inc()
}

// RecordFeedError counts a feed-level failure.
func (m *Metrics) RecordFeedError() {
	if m == nil {
		return
	}
	m.feedErrors.Inc()
}

// RecordNotification counts a dispatched notification.
func (m *Metrics) RecordNotification(recipient string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(recipient).Inc()
}

// RecordTicket counts an opened ticket.
func (m *Metrics) RecordTicket() {
	if m == nil {
		return
	}
	m.tickets.Inc()
}
