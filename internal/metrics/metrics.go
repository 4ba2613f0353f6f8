// Package metrics holds the prometheus collectors of the service.
// Every method is safe on a nil *Metrics so packages can run without metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tontine"

// Metrics groups the domain and RPC collectors.
type Metrics struct {
	TurnsAdvanced     prometheus.Counter
	PaymentsSubmitted prometheus.Counter
	PaymentsValidated prometheus.Counter
	AccessDecisions   *prometheus.CounterVec
	RPCRequests       *prometheus.CounterVec
	RPCDuration       *prometheus.HistogramVec
	Subscribers       prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsAdvanced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_advanced_total",
			Help:      "Turns committed by the rotation engine.",
		}),
		PaymentsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_submitted_total",
			Help:      "Payment proofs submitted by account holders.",
		}),
		PaymentsValidated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_validated_total",
			Help:      "Payments validated by an administrator.",
		}),
		AccessDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_decisions_total",
			Help:      "Access gate decisions by outcome.",
		}, []string{"outcome"}),
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC requests by procedure and result code.",
		}, []string{"procedure", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscribers",
			Help:      "Open realtime handles.",
		}),
	}
}

func (m *Metrics) TurnAdvanced() {
	if m != nil {
		m.TurnsAdvanced.Inc()
	}
}

func (m *Metrics) PaymentSubmitted() {
	if m != nil {
		m.PaymentsSubmitted.Inc()
	}
}

func (m *Metrics) PaymentValidated() {
	if m != nil {
		m.PaymentsValidated.Inc()
	}
}

// AccessDecision counts one gate evaluation.
func (m *Metrics) AccessDecision(outcome string) {
	if m != nil {
		m.AccessDecisions.WithLabelValues(outcome).Inc()
	}
}

// RPC records one finished RPC.
func (m *Metrics) RPC(procedure, code string, seconds float64) {
	if m != nil {
		m.RPCRequests.WithLabelValues(procedure, code).Inc()
		m.RPCDuration.WithLabelValues(procedure).Observe(seconds)
	}
}

// SubscriberGauge returns the gauge of open realtime handles, or nil.
func (m *Metrics) SubscriberGauge() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.Subscribers
}
