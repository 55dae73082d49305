// Package events implements core.EventSink: append-only recorders for run
// lifecycle events. Sinks are best effort by contract; the workflow machine
// logs and swallows their failures.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// Event is one recorded lifecycle event.
type Event struct {
	RunID    string
	TraceID  string
	Stage    string
	Message  string
	Metadata map[string]any
	At       time.Time
}

// InMemorySink keeps events in memory, mostly for tests and introspection.
type InMemorySink struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemorySink creates an empty sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Record implements core.EventSink.
func (s *InMemorySink) Record(_ context.Context, runID, traceID, stage, message string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{
		RunID:    runID,
		TraceID:  traceID,
		Stage:    stage,
		Message:  message,
		Metadata: metadata,
		At:       time.Now().UTC(),
	})
	return nil
}

// Events returns a copy of all recorded events.
func (s *InMemorySink) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ForRun returns the events recorded for one run, in order.
func (s *InMemorySink) ForRun(runID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out
}

// LoggerSink mirrors every event to a structured logger.
type LoggerSink struct {
	logger logging.Logger
}

// NewLoggerSink creates a sink writing to the given logger.
func NewLoggerSink(logger logging.Logger) *LoggerSink {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LoggerSink{logger: logger}
}

// Record implements core.EventSink.
func (s *LoggerSink) Record(_ context.Context, runID, traceID, stage, message string, metadata map[string]any) error {
	args := []any{"run_id", runID, "trace_id", traceID, "stage", stage}
	for k, v := range metadata {
		args = append(args, k, v)
	}
	s.logger.Info(message, args...)
	return nil
}

// MultiSink fans every event out to several sinks. The first failure is
// returned after all sinks have been tried.
type MultiSink struct {
	sinks []core.EventSink
}

// NewMultiSink combines sinks.
func NewMultiSink(sinks ...core.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Record implements core.EventSink.
func (s *MultiSink) Record(ctx context.Context, runID, traceID, stage, message string, metadata map[string]any) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, runID, traceID, stage, message, metadata); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
