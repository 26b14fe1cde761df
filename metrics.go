package scriptcore

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors ScriptRuntime, EventBus, and
// JobQueue register themselves on. It is registered against a
// *prometheus.Registry supplied by the host so embedding scriptcore in a
// process that runs its own metrics server never double-registers.
type Metrics struct {
	moduleLoadsTotal    *prometheus.CounterVec
	moduleLoadDuration  prometheus.Histogram
	eventsDispatched    *prometheus.CounterVec
	jobsDrainedPerFrame prometheus.Histogram
	scriptCallErrors    *prometheus.CounterVec
}

// NewMetrics constructs and registers scriptcore's collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		moduleLoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "module_loads_total",
			Help:      "Total module load attempts by outcome.",
		}, []string{"outcome"}),

		moduleLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scriptcore",
			Name:      "module_load_duration_milliseconds",
			Help:      "Duration of module resolve+load+compile+evaluate.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),

		eventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "events_dispatched_total",
			Help:      "Total envelopes dispatched by phase.",
		}, []string{"phase"}),

		jobsDrainedPerFrame: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scriptcore",
			Name:      "jobs_drained_per_frame",
			Help:      "Number of jobs executed per JobQueue.Drain call.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 256},
		}),

		scriptCallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scriptcore",
			Name:      "script_call_errors_total",
			Help:      "Total ScriptCallError occurrences by phase.",
		}, []string{"phase"}),
	}

	registry.MustRegister(
		m.moduleLoadsTotal,
		m.moduleLoadDuration,
		m.eventsDispatched,
		m.jobsDrainedPerFrame,
		m.scriptCallErrors,
	)

	return m
}

func (m *Metrics) recordModuleLoad(outcome string, durationMs float64) {
	if m == nil {
		return
	}
	m.moduleLoadsTotal.WithLabelValues(outcome).Inc()
	m.moduleLoadDuration.Observe(durationMs)
}

func (m *Metrics) recordDispatch(phase EventPhase) {
	if m == nil {
		return
	}
	m.eventsDispatched.WithLabelValues(phase.String()).Inc()
}

func (m *Metrics) recordDrain(count int) {
	if m == nil {
		return
	}
	m.jobsDrainedPerFrame.Observe(float64(count))
}

func (m *Metrics) recordScriptCallError(phase string) {
	if m == nil {
		return
	}
	m.scriptCallErrors.WithLabelValues(phase).Inc()
}
