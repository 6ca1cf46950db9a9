package metrics

import (
	"net/http"

	"gatekeeper.backend/internal/domain/entities"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gatekeeper"

// Join outcomes
const (
	JoinIssued            = "issued"
	JoinInsufficientFunds = "insufficient_funds"
	JoinConfiguration     = "configuration_error"
	JoinNetwork           = "network_error"
	JoinPlatform          = "platform_error"
	JoinInvalidPortal     = "invalid_portal"
)

// Admission outcomes
const (
	AdmissionAdmitted = "admitted"
	AdmissionIgnored  = "ignored"
)

// Metrics holds the service collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry      *prometheus.Registry
	sweepMembers  *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweeps        prometheus.Counter
	joins         *prometheus.CounterVec
	admissions    *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sweepMembers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "members_total",
			Help:      "Members processed by reconciliation sweeps, by outcome.",
		}, []string{"outcome"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Wall time of a reconciliation sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Completed reconciliation sweeps.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "join",
			Name:      "requests_total",
			Help:      "Join attempts by outcome.",
		}, []string{"outcome"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "requests_total",
			Help:      "Join requests seen by the admission gate, by outcome.",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sweepMembers,
		m.sweepDuration,
		m.sweeps,
		m.joins,
		m.admissions,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSweep records a finished sweep
func (m *Metrics) ObserveSweep(report entities.SweepReport) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.sweepMembers.WithLabelValues("verified").Add(float64(report.Verified))
	m.sweepMembers.WithLabelValues("kicked").Add(float64(report.Kicked))
	m.sweepMembers.WithLabelValues("failed_kick").Add(float64(report.FailedKick))
	m.sweepMembers.WithLabelValues("failed_lookup").Add(float64(report.FailedLookup))
	m.sweepDuration.Observe(report.Duration.Seconds())
}

// ObserveJoin records the outcome of a join attempt
func (m *Metrics) ObserveJoin(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

// ObserveAdmission records the outcome of a join request
func (m *Metrics) ObserveAdmission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}
