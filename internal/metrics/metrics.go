// Package metrics holds the Prometheus collectors of the litigation service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "litigation"

// Scan outcomes.
const (
	ScanOK         = "ok"
	ScanCredential = "credential"
	ScanMailbox    = "mailbox"
	ScanStore      = "store"
)

// Dispatch outcomes.
const (
	DispatchSent    = "sent"
	DispatchFailed  = "failed"
	DispatchSkipped = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	scans       *prometheus.CounterVec
	scanSeconds prometheus.Histogram
	detected    prometheus.Counter
	dispatches  *prometheus.CounterVec
	commission  prometheus.Counter
	events      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Mailbox scans by outcome.",
		}, []string{"outcome"}),
		scanSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of mailbox scans.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		detected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_detected_total",
			Help:      "Cases persisted as detected by scans.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Dispatch attempts by outcome.",
		}, []string{"outcome"}),
		commission: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commission_euros_total",
			Help:      "Commission on sent notices, in euros.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_events_total",
			Help:      "Billing authorization events by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scans, m.scanSeconds, m.detected, m.dispatches, m.commission, m.events,
	)
	return m
}

func (m *Metrics) ScanCompleted(outcome string, detected int, took time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(outcome).Inc()
	m.scanSeconds.Observe(took.Seconds())
	m.detected.Add(float64(detected))
}

func (m *Metrics) CaseDispatched(outcome string, commission float64) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
	if commission > 0 {
		m.commission.Add(commission)
	}
}

// EventReceived counts webhook events; result is "accepted" or "rejected".
func (m *Metrics) EventReceived(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
