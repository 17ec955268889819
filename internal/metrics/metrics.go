// Package metrics exposes Prometheus collectors for the gate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/access"
)

const namespace = "stadium_gate"

// Metrics holds the gate collectors. It satisfies access.Observer and
// gate.ConnObserver.
type Metrics struct {
	sessions        *prometheus.CounterVec
	refusals        *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	redemptions     prometheus.Counter
	openConns       prometheus.Gauge
	rejectedConns   *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "total",
			Help:      "Finished access sessions by result.",
		}, []string{"result"}),
		refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "refusals_total",
			Help:      "Refused sessions by stage and reason.",
		}, []string{"stage", "reason"}),
		sessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Time from connection to terminal outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		redemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ticket",
			Name:      "redemptions_total",
			Help:      "Tickets redeemed.",
		}),
		openConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "open",
			Help:      "Connections currently being served.",
		}),
		rejectedConns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conn",
			Name:      "rejected_total",
			Help:      "Connections dropped before a session started.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.sessions,
		m.refusals,
		m.sessionDuration,
		m.redemptions,
		m.openConns,
		m.rejectedConns,
	)
	return m
}

// SessionFinished records a session outcome.
func (m *Metrics) SessionFinished(o access.Outcome) {
	result := o.Result()
	m.sessions.WithLabelValues(result).Inc()
	m.sessionDuration.WithLabelValues(result).Observe(o.Duration.Seconds())
	if o.Granted {
		m.redemptions.Inc()
		return
	}
	if o.Failure != nil {
		m.refusals.WithLabelValues(o.Stage.String(), o.Failure.Reason).Inc()
	}
}

func (m *Metrics) ConnectionOpened() { m.openConns.Inc() }

func (m *Metrics) ConnectionClosed() { m.openConns.Dec() }

func (m *Metrics) ConnectionRejected(reason string) {
	m.rejectedConns.WithLabelValues(reason).Inc()
}
