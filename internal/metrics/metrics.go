// Package metrics exposes reconciliation counters on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/tabkeeper/schema"
)

// Reconciliation kinds.
const (
	KindAll     = "all"
	KindWindow  = "window"
	KindRemoved = "removed"
)

// Metrics holds the collectors. The zero value is not usable; a nil
// *Metrics ignores every observation.
type Metrics struct {
	registry *prometheus.Registry

	Reconciles        *prometheus.CounterVec
	ReconcileDuration *prometheus.HistogramVec
	Matches           *prometheus.CounterVec
	DebounceScheduled *prometheus.CounterVec
	DebounceFired     prometheus.Counter
	StoreWrites       *prometheus.CounterVec
	PaintFailures     prometheus.Counter
	Sessions          prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Reconciles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabkeeper_reconciles_total",
				Help: "Reconciliation passes by kind and result",
			},
			[]string{"kind", "result"},
		),
		ReconcileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabkeeper_reconcile_duration_seconds",
				Help:    "Reconciliation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		Matches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabkeeper_match_outcomes_total",
				Help: "Session to window match outcomes",
			},
			[]string{"outcome"},
		),
		DebounceScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabkeeper_debounce_scheduled_total",
				Help: "Debounced window updates scheduled",
			},
			[]string{"replaced"},
		),
		DebounceFired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabkeeper_debounce_fired_total",
				Help: "Debounced window updates executed",
			},
		),
		StoreWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabkeeper_store_writes_total",
				Help: "Session collection writes by result",
			},
			[]string{"result"},
		),
		PaintFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tabkeeper_paint_failures_total",
				Help: "Icon or badge paint failures",
			},
		),
		Sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tabkeeper_sessions",
				Help: "Sessions in the collection after the last reconciliation",
			},
		),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Reconciled records one reconciliation pass.
func (m *Metrics) Reconciled(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Reconciles.WithLabelValues(kind, result(err)).Inc()
	m.ReconcileDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Matched records a matcher outcome for one session.
func (m *Metrics) Matched(ok bool) {
	if m == nil {
		return
	}
	outcome := "unmatched"
	if ok {
		outcome = "matched"
	}
	m.Matches.WithLabelValues(outcome).Inc()
}

// SessionCount records the collection size.
func (m *Metrics) SessionCount(n int) {
	if m == nil {
		return
	}
	m.Sessions.Set(float64(n))
}

// Scheduled implements scheduler.Observer.
func (m *Metrics) Scheduled(_ schema.WindowID, replaced bool) {
	if m == nil {
		return
	}
	m.DebounceScheduled.WithLabelValues(strconv.FormatBool(replaced)).Inc()
}

// Fired implements scheduler.Observer.
func (m *Metrics) Fired(schema.WindowID) {
	if m == nil {
		return
	}
	m.DebounceFired.Inc()
}

// StoreWrite implements sessionstore.Observer.
func (m *Metrics) StoreWrite(err error) {
	if m == nil {
		return
	}
	m.StoreWrites.WithLabelValues(result(err)).Inc()
}

// PaintFailed implements badge.Observer.
func (m *Metrics) PaintFailed(schema.WindowID) {
	if m == nil {
		return
	}
	m.PaintFailures.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
