package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_events_published_total",
		Help: "Total number of events acknowledged by the event log, labelled by topic and type.",
	}, []string{"topic", "type"})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_publish_failures_total",
		Help: "Total number of publishes the event log did not acknowledge.",
	}, []string{"topic"})

	Quarantined = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_events_quarantined_total",
		Help: "Total number of events written to the dead-letter store.",
	}, []string{"topic"})

	QuarantineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_quarantine_failures_total",
		Help: "Total number of events neither published nor quarantined.",
	}, []string{"topic"})

	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_generator_ticks_total",
		Help: "Total number of generator ticks, labelled by generator and outcome (ok, noop, error).",
	}, []string{"generator", "outcome"})

	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopsynth_generator_tick_duration_ms",
		Help:    "Generator tick latency in milliseconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"generator"})

	GeneratorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shopsynth_generator_state",
		Help: "Current generator state (0 waiting, 1 running, 2 crashed, 3 stopped).",
	}, []string{"generator"})

	Restarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_generator_restarts_total",
		Help: "Total number of generator restarts after a crash.",
	}, []string{"generator"})

	DependencyWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_dependency_waits_total",
		Help: "Total number of gate polls that found an upstream table still empty.",
	}, []string{"generator"})

	PipelineProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_pipeline_processed_total",
		Help: "Total number of envelopes mirrored by the consumer pipeline.",
	}, []string{"topic"})

	PipelineRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_pipeline_rejected_total",
		Help: "Total number of envelopes rejected by the consumer pipeline, labelled by reason.",
	}, []string{"topic", "reason"})

	SweepOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_deadletter_sweep_outcomes_total",
		Help: "Dead-letter sweep results per entry (resolved, failed).",
	}, []string{"outcome"})

	PolicyReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopsynth_policy_reloads_total",
		Help: "Policy table reloads, labelled by result (ok, rejected).",
	}, []string{"result"})
)
