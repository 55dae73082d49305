package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusSink counts run lifecycle events by stage. It records no
// per-run detail; pair it with another sink through MultiSink when the event
// payloads matter.
type PrometheusSink struct {
	events *prometheus.CounterVec
}

// NewPrometheusSink registers the event counter with the given registerer.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	return &PrometheusSink{
		events: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskmesh",
			Subsystem: "workflow",
			Name:      "events_total",
			Help:      "Run lifecycle events by stage.",
		}, []string{"stage"}),
	}
}

// Record implements core.EventSink.
func (s *PrometheusSink) Record(_ context.Context, _, _, stage, _ string, _ map[string]any) error {
	s.events.WithLabelValues(stage).Inc()
	return nil
}
