// Package workflow implements the state machine governing the lifecycle of a
// single task-processing run. A Machine owns exactly one current state and an
// ordered, append-only transition history; every successful transition is
// mirrored to an external event sink (best effort, never load-bearing).
package workflow

import (
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// State is a closed enumeration of workflow lifecycle states.
type State string

// Workflow states. COMPLETED and CANCELLED are terminal: they have no
// unforced outgoing transitions.
const (
	StateInitialized     State = "INITIALIZED"
	StateParsing         State = "PARSING"
	StatePlanning        State = "PLANNING"
	StateApprovalPending State = "APPROVAL_PENDING"
	StateApproved        State = "APPROVED"
	StateExecuting       State = "EXECUTING"
	StatePaused          State = "PAUSED"
	StateCompleted       State = "COMPLETED"
	StateFailed          State = "FAILED"
	StateCancelled       State = "CANCELLED"
	StateRetrying        State = "RETRYING"
)

// allowedTransitions is the unforced transition table. Absence of a row means
// no unforced transition leaves that state.
var allowedTransitions = map[State][]State{
	StateInitialized:     {StateParsing, StateCancelled},
	StateParsing:         {StatePlanning, StateFailed, StateCancelled},
	StatePlanning:        {StateApprovalPending, StateApproved, StateExecuting, StateFailed, StateCancelled},
	StateApprovalPending: {StateApproved, StateCancelled, StateFailed},
	StateApproved:        {StateExecuting, StateCancelled},
	StateExecuting:       {StatePaused, StateCompleted, StateFailed, StateRetrying, StateCancelled},
	StatePaused:          {StateExecuting, StateCancelled, StateFailed},
	StateRetrying:        {StateExecuting, StateFailed, StateCancelled},
	StateFailed:          {StateRetrying, StateCancelled},
}

// IsTerminal reports whether the state has no unforced outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Stage maps a state to the coarser stage tag used when mirroring transitions
// to the event sink.
func (s State) Stage() string {
	switch s {
	case StateInitialized, StateParsing:
		return "parsing"
	case StatePlanning, StateApprovalPending, StateApproved:
		return "planning"
	case StateExecuting, StatePaused, StateRetrying:
		return "execution"
	case StateCompleted:
		return "result"
	default:
		return "error"
	}
}

// Transition is an immutable record of one state change. From is nil for the
// initializing transition.
type Transition struct {
	From      *State         `json:"from_state"`
	To        State          `json:"to_state"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Machine owns the lifecycle of one task-processing run. All mutations go
// through Initialize and TransitionTo (or its convenience wrappers); history
// never shrinks or reorders.
//
// The machine is driven by a single run and therefore assumes one writer;
// queries are safe at any time from that writer's goroutine.
type Machine struct {
	runCtx      *core.RunContext
	sink        core.EventSink
	logger      logging.Logger
	state       State
	transitions []Transition
	initialized bool
}

// Options configures a Machine.
type Options struct {
	// Sink receives one record per successful transition. Nil disables
	// mirroring. Sink failures are logged and swallowed.
	Sink core.EventSink

	// Logger defaults to the run context's logger.
	Logger logging.Logger
}

// NewMachine creates an uninitialized machine bound to a run scope. Call
// Initialize before any transition.
func NewMachine(runCtx *core.RunContext, optFns ...func(o *Options)) *Machine {
	opts := Options{Logger: runCtx.Logger}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Machine{
		runCtx: runCtx,
		sink:   opts.Sink,
		logger: opts.Logger,
	}
}

// RunID returns the identifier of the run this machine governs.
func (m *Machine) RunID() string { return m.runCtx.RunID }

// Initialize sets the machine to INITIALIZED, appends the first transition
// (from=nil) and emits a lifecycle event. Initializing twice is rejected.
func (m *Machine) Initialize(userRequest, username, interactionType string) bool {
	if m.initialized {
		m.logger.Warn("workflow already initialized", "run_id", m.runCtx.RunID)
		return false
	}

	m.initialized = true
	m.state = StateInitialized
	m.append(Transition{
		From:   nil,
		To:     StateInitialized,
		Reason: "workflow initialized",
		Metadata: map[string]any{
			"user_request":     userRequest,
			"username":         username,
			"interaction_type": interactionType,
		},
		Timestamp: time.Now().UTC(),
	})

	return true
}

// CanTransitionTo reports whether an unforced transition from the current
// state to target is permitted by the table.
func (m *Machine) CanTransitionTo(target State) bool {
	if !m.initialized {
		return false
	}
	for _, next := range allowedTransitions[m.state] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionTo moves the machine to target if the edge is in the allowed
// table. It returns false (and logs a warning) for an uninitialized machine
// or a disallowed edge; it never panics or errors for a bad transition.
func (m *Machine) TransitionTo(target State, reason string, metadata map[string]any) bool {
	return m.transition(target, reason, metadata, false)
}

// ForceTransitionTo moves the machine to target bypassing the transition
// table. Reserved for cancellation and failure paths; still requires an
// initialized machine.
func (m *Machine) ForceTransitionTo(target State, reason string, metadata map[string]any) bool {
	return m.transition(target, reason, metadata, true)
}

func (m *Machine) transition(target State, reason string, metadata map[string]any, force bool) bool {
	if !m.initialized {
		m.logger.Warn("transition rejected: workflow not initialized", "target", target)
		return false
	}

	if !force && !m.CanTransitionTo(target) {
		m.logger.Warn("transition rejected", "from", m.state, "to", target, "run_id", m.runCtx.RunID)
		return false
	}

	from := m.state
	m.state = target
	m.append(Transition{
		From:      &from,
		To:        target,
		Reason:    reason,
		Metadata:  metadata,
		Timestamp: time.Now().UTC(),
	})

	return true
}

// append records the transition and mirrors it to the event sink. Sink
// failures are swallowed: the state machine never fails because persistence
// failed.
func (m *Machine) append(t Transition) {
	m.transitions = append(m.transitions, t)

	if m.sink == nil {
		return
	}

	md := map[string]any{"to_state": string(t.To)}
	if t.From != nil {
		md["from_state"] = string(*t.From)
	}
	for k, v := range t.Metadata {
		md[k] = v
	}

	if err := m.sink.Record(m.runCtx.Context, m.runCtx.RunID, m.runCtx.TraceID, t.To.Stage(), t.Reason, md); err != nil {
		m.logger.Warn("event sink record failed", "run_id", m.runCtx.RunID, "error", err)
	}
}

// Pause is valid only from EXECUTING.
func (m *Machine) Pause() bool {
	if m.state != StateExecuting {
		return false
	}
	return m.TransitionTo(StatePaused, "workflow paused", nil)
}

// Resume is valid only from PAUSED.
func (m *Machine) Resume() bool {
	if m.state != StatePaused {
		return false
	}
	return m.TransitionTo(StateExecuting, "workflow resumed", nil)
}

// Cancel forces a transition to CANCELLED from any non-terminal state.
// Cancellation must always be possible; it is the one transition allowed to
// bypass the table.
func (m *Machine) Cancel(reason string) bool {
	if !m.initialized || m.state.IsTerminal() {
		return false
	}
	return m.ForceTransitionTo(StateCancelled, reason, nil)
}

// MarkCompleted records completion; valid only from EXECUTING or APPROVED.
func (m *Machine) MarkCompleted(result any) bool {
	if m.state != StateExecuting && m.state != StateApproved {
		m.logger.Warn("mark_completed rejected", "state", m.state, "run_id", m.runCtx.RunID)
		return false
	}
	return m.TransitionTo(StateCompleted, "workflow completed", map[string]any{"result": result})
}

// MarkFailed forces a transition to FAILED from any state; failures can occur
// anywhere in the lifecycle.
func (m *Machine) MarkFailed(errMsg string, details map[string]any) bool {
	md := map[string]any{"error": errMsg}
	for k, v := range details {
		md[k] = v
	}
	return m.ForceTransitionTo(StateFailed, errMsg, md)
}

// Retry is valid only from FAILED.
func (m *Machine) Retry(reason string) bool {
	if m.state != StateFailed {
		return false
	}
	return m.TransitionTo(StateRetrying, reason, nil)
}

// CurrentState returns the single current state.
func (m *Machine) CurrentState() State { return m.state }

// History returns a defensive copy of the full transition history.
func (m *Machine) History() []Transition {
	history := make([]Transition, len(m.transitions))
	copy(history, m.transitions)
	return history
}

// StateInfo summarizes the machine for callers: current state, transition
// count, last transition and legal next states.
type StateInfo struct {
	Current         State       `json:"current_state"`
	TransitionCount int         `json:"transition_count"`
	Last            *Transition `json:"last_transition,omitempty"`
	AllowedNext     []State     `json:"allowed_next,omitempty"`
}

// GetStateInfo returns a snapshot summary of the machine.
func (m *Machine) GetStateInfo() StateInfo {
	info := StateInfo{
		Current:         m.state,
		TransitionCount: len(m.transitions),
	}
	if n := len(m.transitions); n > 0 {
		last := m.transitions[n-1]
		info.Last = &last
	}
	next := allowedTransitions[m.state]
	info.AllowedNext = make([]State, len(next))
	copy(info.AllowedNext, next)
	return info
}

// Snapshot converts the machine into its persisted store representation.
func (m *Machine) Snapshot() core.RunSnapshot {
	transitions := make([]map[string]any, 0, len(m.transitions))
	for _, t := range m.transitions {
		record := map[string]any{
			"to_state":  string(t.To),
			"reason":    t.Reason,
			"timestamp": t.Timestamp,
		}
		if t.From != nil {
			record["from_state"] = string(*t.From)
		}
		if len(t.Metadata) > 0 {
			record["metadata"] = t.Metadata
		}
		transitions = append(transitions, record)
	}

	return core.RunSnapshot{
		ID:          m.runCtx.RunID,
		State:       string(m.state),
		Transitions: transitions,
	}
}
