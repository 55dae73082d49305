package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/taskmesh/taskmesh/logging"
)

// RunContext carries the execution scope for one task-processing run. It
// replaces any process-wide state: every component that participates in a run
// receives the RunContext explicitly and derives cancellation, identity and
// logging from it.
//
// The zero value is not usable; construct via NewRunContext.
type RunContext struct {
	Context context.Context
	RunID   string
	TraceID string
	Logger  logging.Logger
}

// NewRunContext constructs a RunContext with generated run and trace ids.
// A nil logger is substituted with a NoOpLogger so callers never need nil
// checks before logging.
func NewRunContext(ctx context.Context, logger logging.Logger) *RunContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &RunContext{
		Context: ctx,
		RunID:   uuid.NewString(),
		TraceID: uuid.NewString(),
		Logger:  logger,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// WithContext returns a copy of the RunContext bound to a different
// context.Context, keeping run identity and logger. Used when a caller needs
// to narrow the cancellation scope (e.g. a per-request timeout).
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := *rc
	c.Context = ctx
	return &c
}

// NewID generates a new unique identifier for runs, plans and messages.
func NewID() string { return uuid.NewString() }
