// Package metrics exposes Prometheus collectors for snapshot refreshes and
// ledger change events.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kharcha/internal/ledger"
	"kharcha/internal/notify"
)

const namespace = "kharcha"

// Refresh results used as the "result" label.
const (
	ResultApplied    = "applied"
	ResultSuperseded = "superseded"
	ResultFailed     = "failed"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry        *prometheus.Registry
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	remaining       prometheus.Gauge
	totalSpent      prometheus.Gauge
	budgetPercent   *prometheus.GaugeVec
	changeEvents    *prometheus.CounterVec
}

// New builds the collectors and registers them together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Snapshot refreshes by outcome.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Time spent reading the ledger for a refresh.",
			Buckets:   prometheus.DefBuckets,
		}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_minor_units",
			Help:      "Pool balance of the latest snapshot, may be negative.",
		}),
		totalSpent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_spent_minor_units",
			Help:      "Total spent of the latest snapshot.",
		}),
		budgetPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "budget_percent",
			Help:      "Clamped budget consumption of the latest snapshot.",
		}, []string{"budget"}),
		changeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Ledger change events by collection.",
		}, []string{"collection"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.refreshTotal,
		m.refreshDuration,
		m.remaining,
		m.totalSpent,
		m.budgetPercent,
		m.changeEvents,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RefreshApplied(d time.Duration, r ledger.Report) {
	m.refreshTotal.WithLabelValues(ResultApplied).Inc()
	m.refreshDuration.Observe(d.Seconds())
	m.remaining.Set(float64(r.Snapshot.Remaining.Cents))
	m.totalSpent.Set(float64(r.Snapshot.TotalSpent.Cents))

	// Deleted budgets must not linger as stale series.
	m.budgetPercent.Reset()
	for _, p := range r.Budgets {
		m.budgetPercent.WithLabelValues(p.Budget.Name).Set(p.Percent)
	}
}

func (m *Metrics) RefreshSuperseded() {
	m.refreshTotal.WithLabelValues(ResultSuperseded).Inc()
}

func (m *Metrics) RefreshFailed(d time.Duration) {
	m.refreshTotal.WithLabelValues(ResultFailed).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

// CountEvent records one change event.
func (m *Metrics) CountEvent(ev notify.Event) {
	m.changeEvents.WithLabelValues(string(ev.Collection)).Inc()
}

// Publisher wraps next so every successfully published event is counted.
func (m *Metrics) Publisher(next notify.Publisher) notify.Publisher {
	return &countingPublisher{next: next, m: m}
}

type countingPublisher struct {
	next notify.Publisher
	m    *Metrics
}

func (p *countingPublisher) Publish(ctx context.Context, ev notify.Event) error {
	if err := p.next.Publish(ctx, ev); err != nil {
		return err
	}
	p.m.CountEvent(ev)
	return nil
}

// Source wraps next so every delivered event is counted before fn sees it.
func (m *Metrics) Source(next notify.Source) notify.Source {
	return countingSource{next: next, m: m}
}

type countingSource struct {
	next notify.Source
	m    *Metrics
}

func (s countingSource) Subscribe(ctx context.Context, fn func(notify.Event)) (func(), error) {
	return s.next.Subscribe(ctx, func(ev notify.Event) {
		s.m.CountEvent(ev)
		fn(ev)
	})
}
