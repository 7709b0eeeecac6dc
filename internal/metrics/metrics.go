// Package metrics collects runtime counters on a private prometheus
// registry, exposed by the admin server at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the runtime's collectors. All methods are safe for
// concurrent use; a nil *Metrics is a no-op sink so callers never need to
// branch on whether metrics are wired.
type Metrics struct {
	registry *prometheus.Registry

	generationsStarted   prometheus.Counter
	generationsSucceeded prometheus.Counter
	generationsFailed    prometheus.Counter
	generationRetries    prometheus.Counter
	generationDuration   prometheus.Histogram

	commandsDispatched *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	streamChars        prometheus.Counter
}

// New creates the collectors on a fresh private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		generationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "generations_started_total",
			Help:      "Generation attempts started.",
		}),
		generationsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "generations_succeeded_total",
			Help:      "Generations that produced at least one send.",
		}),
		generationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "generations_failed_total",
			Help:      "Generations that exhausted their retries.",
		}),
		generationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "generation_retries_total",
			Help:      "Guarded generation attempts that were retried.",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "banter",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one full generation cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),

		commandsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "commands_dispatched_total",
			Help:      "Bracket commands dispatched, by command name.",
		}, []string{"command"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "tool_calls_total",
			Help:      "Structured tool calls executed, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		streamChars: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "banter",
			Name:      "stream_characters_total",
			Help:      "Characters consumed from completion streams.",
		}),
	}

	m.registry.MustRegister(
		m.generationsStarted,
		m.generationsSucceeded,
		m.generationsFailed,
		m.generationRetries,
		m.generationDuration,
		m.commandsDispatched,
		m.toolCalls,
		m.streamChars,
	)
	return m
}

// Registry exposes the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) GenerationStarted() {
	if m != nil {
		m.generationsStarted.Inc()
	}
}

func (m *Metrics) GenerationSucceeded(seconds float64) {
	if m != nil {
		m.generationsSucceeded.Inc()
		m.generationDuration.Observe(seconds)
	}
}

func (m *Metrics) GenerationFailed() {
	if m != nil {
		m.generationsFailed.Inc()
	}
}

func (m *Metrics) GenerationRetried() {
	if m != nil {
		m.generationRetries.Inc()
	}
}

func (m *Metrics) CommandDispatched(name string) {
	if m != nil {
		m.commandsDispatched.WithLabelValues(name).Inc()
	}
}

// ToolCall records one executed tool call; outcome is "ok" or "error".
func (m *Metrics) ToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) StreamChars(n int) {
	if m != nil && n > 0 {
		m.streamChars.Add(float64(n))
	}
}
