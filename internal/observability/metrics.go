// Package observability exposes Prometheus metrics for the alert pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values shared across pipeline counters.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeSuccess  = "success"
	OutcomeTimeout  = "timeout"
	OutcomeDropped  = "dropped"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	AlertsIngested  *prometheus.CounterVec
	CaptureJobs     *prometheus.CounterVec
	MailDispatch    *prometheus.CounterVec
	LiveEvents      *prometheus.CounterVec
	SSEConnections  prometheus.Gauge
	CaptureInFlight prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centinela_alerts_ingested_total",
			Help: "Inbound alert submissions by outcome.",
		}, []string{"outcome"}),
		CaptureJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centinela_capture_jobs_total",
			Help: "Capture job completions by outcome.",
		}, []string{"outcome"}),
		MailDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centinela_mail_dispatch_total",
			Help: "Per-recipient mail dispatch attempts by outcome.",
		}, []string{"outcome"}),
		LiveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "centinela_live_events_total",
			Help: "Live push events published by kind.",
		}, []string{"kind"}),
		SSEConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "centinela_sse_connections",
			Help: "Currently connected live event stream clients.",
		}),
		CaptureInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "centinela_capture_jobs_in_flight",
			Help: "Capture jobs currently running.",
		}),
	}
	reg.MustRegister(
		m.AlertsIngested,
		m.CaptureJobs,
		m.MailDispatch,
		m.LiveEvents,
		m.SSEConnections,
		m.CaptureInFlight,
	)
	return m
}

// NewTestMetrics creates metrics on a private registry for tests.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
