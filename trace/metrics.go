package trace

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink maps trace events onto Prometheus metrics.
type MetricsSink struct {
	transitions  *prometheus.CounterVec
	capFailures  *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	confidence   prometheus.Histogram
	routerPasses *prometheus.CounterVec
}

// NewMetricsSink creates and registers the workflow metrics on reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udahub",
			Name:      "engine_transitions_total",
			Help:      "Workflow state transitions by from/to state.",
		}, []string{"from", "to"}),
		capFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udahub",
			Name:      "capability_failures_total",
			Help:      "Capability call failures by capability and kind.",
		}, []string{"capability", "kind"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udahub",
			Name:      "tickets_done_total",
			Help:      "Completed tickets by terminal outcome.",
		}, []string{"outcome"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "udahub",
			Name:      "resolution_confidence",
			Help:      "Confidence of resolution attempts.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		routerPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udahub",
			Name:      "router_decisions_total",
			Help:      "Supervisor routing decisions by next step.",
		}, []string{"next"}),
	}

	for _, c := range []prometheus.Collector{
		s.transitions, s.capFailures, s.outcomes, s.confidence, s.routerPasses,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register workflow metrics: %w", err)
		}
	}
	return s, nil
}

// Emit implements Sink.
func (s *MetricsSink) Emit(_ context.Context, ev Event) error {
	switch ev.Event {
	case EventTransition:
		s.transitions.WithLabelValues(extraString(ev, "from"), extraString(ev, "to")).Inc()
	case EventCapabilityFailure:
		s.capFailures.WithLabelValues(extraString(ev, "capability"), extraString(ev, "kind")).Inc()
	case EventRouterDecision, EventRouterAnomaly:
		s.routerPasses.WithLabelValues(extraString(ev, "next")).Inc()
	case EventTicketDone:
		s.outcomes.WithLabelValues(extraString(ev, "outcome")).Inc()
		if c, ok := ev.Extra["confidence"].(float64); ok {
			s.confidence.Observe(c)
		}
	}
	return nil
}

func extraString(ev Event, key string) string {
	if v, ok := ev.Extra[key].(string); ok {
		return v
	}
	return "unknown"
}
