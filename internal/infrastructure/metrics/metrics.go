package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all prometheus metrics for the scoring service.
// uses a custom registry to avoid polluting the global namespace.
type Metrics struct {
	Registry *prometheus.Registry

	// http_request_duration_seconds - histogram for api latency
	HTTPRequestDuration *prometheus.HistogramVec

	// spirit_scoring_cycle_duration_seconds - histogram per outcome status
	ScoringCycleDuration *prometheus.HistogramVec

	// spirit_scoring_fallbacks_total - counter per fallback kind
	FallbacksTotal *prometheus.CounterVec

	// spirit_momentum_phase_total - counter per engine branch
	MomentumPhaseTotal *prometheus.CounterVec

	// spirit_schedule_fetch_total - counter per prayer time lookup result
	ScheduleFetchTotal *prometheus.CounterVec

	// spirit_milestone_queue_size - gauge for pending milestone deliveries
	MilestoneQueueSize prometheus.Gauge

	// spirit_milestone_deliveries_total - counter per delivery outcome
	MilestoneDeliveriesTotal *prometheus.CounterVec
}

// New creates and registers all prometheus metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// add standard go runtime and process collectors
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		ScoringCycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spirit_scoring_cycle_duration_seconds",
				Help:    "Duration of scoring cycles in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"status"},
		),

		FallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spirit_scoring_fallbacks_total",
				Help: "Total number of degraded paths taken during scoring",
			},
			[]string{"kind"},
		),

		MomentumPhaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spirit_momentum_phase_total",
				Help: "Total number of momentum evaluations per phase",
			},
			[]string{"phase"},
		),

		ScheduleFetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spirit_schedule_fetch_total",
				Help: "Total number of obligation schedule lookups per result",
			},
			[]string{"result"},
		),

		MilestoneQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spirit_milestone_queue_size",
			Help: "Current number of milestone notifications waiting for delivery",
		}),

		MilestoneDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spirit_milestone_deliveries_total",
				Help: "Total number of milestone webhook deliveries per outcome",
			},
			[]string{"outcome"},
		),
	}

	// register all custom metrics
	reg.MustRegister(
		m.HTTPRequestDuration,
		m.ScoringCycleDuration,
		m.FallbacksTotal,
		m.MomentumPhaseTotal,
		m.ScheduleFetchTotal,
		m.MilestoneQueueSize,
		m.MilestoneDeliveriesTotal,
	)

	return m
}

// RecordHTTPRequest records the duration of an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}

// RecordScoringCycle records the duration of one scoring cycle.
func (m *Metrics) RecordScoringCycle(durationSeconds float64, status string) {
	m.ScoringCycleDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordFallback increments the fallback counter for kind.
func (m *Metrics) RecordFallback(kind string) {
	m.FallbacksTotal.WithLabelValues(kind).Inc()
}

// RecordMomentumPhase increments the phase counter.
func (m *Metrics) RecordMomentumPhase(phase string) {
	m.MomentumPhaseTotal.WithLabelValues(phase).Inc()
}

// RecordScheduleFetch increments the schedule lookup counter.
func (m *Metrics) RecordScheduleFetch(result string) {
	m.ScheduleFetchTotal.WithLabelValues(result).Inc()
}

// SetMilestoneQueueSize sets the pending milestone gauge.
func (m *Metrics) SetMilestoneQueueSize(size int) {
	m.MilestoneQueueSize.Set(float64(size))
}

// RecordMilestoneDelivery increments the delivery counter for outcome.
func (m *Metrics) RecordMilestoneDelivery(outcome string) {
	m.MilestoneDeliveriesTotal.WithLabelValues(outcome).Inc()
}
