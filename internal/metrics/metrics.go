// Package metrics holds the Prometheus instrumentation for the runtime.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder bundles the runtime's collectors. A nil *Recorder is valid and
// records nothing, so instrumentation points never need nil checks at call
// sites beyond the receiver.
type Recorder struct {
	modelFirstByte  prometheus.Histogram
	modelTotal      prometheus.Histogram
	toolInvocations *prometheus.CounterVec
	rounds          prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		modelFirstByte: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "manifold_model_first_byte_seconds",
			Help:    "Time until the first fragment of a model response arrived",
			Buckets: prometheus.DefBuckets,
		}),
		modelTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "manifold_model_response_seconds",
			Help:    "Total duration of a model call",
			Buckets: prometheus.DefBuckets,
		}),
		toolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "manifold_tool_invocations_total",
				Help: "Tool invocations by tool name and outcome",
			},
			[]string{"tool", "outcome"},
		),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "manifold_turn_rounds",
			Help:    "Model rounds needed to finish one agent turn",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
	}
	reg.MustRegister(r.modelFirstByte, r.modelTotal, r.toolInvocations, r.rounds)
	return r
}

// ObserveModelCall records latency for one model call. firstByte is zero for
// non-streamed calls, where first byte and completion coincide.
func (r *Recorder) ObserveModelCall(firstByte, total time.Duration) {
	if r == nil {
		return
	}
	if firstByte > 0 {
		r.modelFirstByte.Observe(firstByte.Seconds())
	}
	r.modelTotal.Observe(total.Seconds())
}

// ObserveToolInvocation counts one tool call with its outcome
// ("ok", "error", "unknown_tool", "bad_arguments").
func (r *Recorder) ObserveToolInvocation(tool, outcome string) {
	if r == nil {
		return
	}
	r.toolInvocations.WithLabelValues(tool, outcome).Inc()
}

// ObserveTurnRounds records how many model rounds one turn took.
func (r *Recorder) ObserveTurnRounds(n int) {
	if r == nil {
		return
	}
	r.rounds.Observe(float64(n))
}
