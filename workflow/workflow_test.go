package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
)

// recordingSink captures sink records for assertions.
type recordingSink struct {
	records []sinkRecord
	fail    bool
}

type sinkRecord struct {
	runID, traceID, stage, message string
	metadata                       map[string]any
}

func (s *recordingSink) Record(_ context.Context, runID, traceID, stage, message string, metadata map[string]any) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.records = append(s.records, sinkRecord{runID, traceID, stage, message, metadata})
	return nil
}

func newTestMachine(t *testing.T, sink core.EventSink) *Machine {
	t.Helper()
	runCtx := core.NewRunContext(context.Background(), nil)
	m := NewMachine(runCtx, func(o *Options) { o.Sink = sink })
	require.True(t, m.Initialize("test request", "tester", "api"))
	return m
}

// driveTo walks the machine to the target state along a legal path.
func driveTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		StateParsing:         {StateParsing},
		StatePlanning:        {StateParsing, StatePlanning},
		StateApprovalPending: {StateParsing, StatePlanning, StateApprovalPending},
		StateApproved:        {StateParsing, StatePlanning, StateApproved},
		StateExecuting:       {StateParsing, StatePlanning, StateExecuting},
		StatePaused:          {StateParsing, StatePlanning, StateExecuting, StatePaused},
		StateCompleted:       {StateParsing, StatePlanning, StateExecuting, StateCompleted},
		StateFailed:          {StateParsing, StatePlanning, StateExecuting, StateFailed},
		StateRetrying:        {StateParsing, StatePlanning, StateExecuting, StateFailed, StateRetrying},
		StateCancelled:       {StateCancelled},
	}
	for _, s := range paths[target] {
		require.True(t, m.TransitionTo(s, "advance", nil), "transition to %s", s)
	}
}

func TestMachine_TransitionTableTotality(t *testing.T) {
	all := []State{
		StateInitialized, StateParsing, StatePlanning, StateApprovalPending,
		StateApproved, StateExecuting, StatePaused, StateCompleted,
		StateFailed, StateCancelled, StateRetrying,
	}

	for from, allowed := range allowedTransitions {
		m := newTestMachine(t, nil)
		if from != StateInitialized {
			driveTo(t, m, from)
		}
		require.Equal(t, from, m.CurrentState())

		allowedSet := map[State]bool{}
		for _, s := range allowed {
			allowedSet[s] = true
		}

		for _, to := range all {
			assert.Equal(t, allowedSet[to], m.CanTransitionTo(to),
				"CanTransitionTo(%s) from %s", to, from)
		}
	}
}

func TestMachine_NoIllegalTransitionRecorded(t *testing.T) {
	m := newTestMachine(t, nil)

	// A mix of legal and illegal attempts.
	m.TransitionTo(StateExecuting, "skip ahead", nil) // illegal from INITIALIZED
	m.TransitionTo(StateParsing, "parse", nil)
	m.TransitionTo(StatePaused, "illegal", nil) // illegal from PARSING
	m.TransitionTo(StatePlanning, "plan", nil)
	m.TransitionTo(StateExecuting, "execute", nil)

	for _, tr := range m.History() {
		if tr.From == nil {
			continue
		}
		found := false
		for _, next := range allowedTransitions[*tr.From] {
			if next == tr.To {
				found = true
				break
			}
		}
		assert.True(t, found, "history contains illegal edge %s -> %s", *tr.From, tr.To)
	}
}

func TestMachine_DisallowedTransitionReturnsFalse(t *testing.T) {
	m := newTestMachine(t, nil)

	assert.False(t, m.TransitionTo(StateCompleted, "too soon", nil))
	assert.Equal(t, StateInitialized, m.CurrentState())
	assert.Len(t, m.History(), 1)
}

func TestMachine_UninitializedRejectsTransitions(t *testing.T) {
	runCtx := core.NewRunContext(context.Background(), nil)
	m := NewMachine(runCtx)

	assert.False(t, m.TransitionTo(StateParsing, "no init", nil))
	assert.False(t, m.CanTransitionTo(StateParsing))
	assert.False(t, m.Cancel("no init"))
	assert.Empty(t, m.History())
}

func TestMachine_PauseResume(t *testing.T) {
	m := newTestMachine(t, nil)
	driveTo(t, m, StateExecuting)

	assert.True(t, m.Pause())
	assert.Equal(t, StatePaused, m.CurrentState())

	assert.True(t, m.Resume())
	assert.Equal(t, StateExecuting, m.CurrentState())

	// Pause twice: the second call finds PAUSED, not EXECUTING.
	assert.True(t, m.Pause())
	assert.False(t, m.Pause())
	assert.Equal(t, StatePaused, m.CurrentState())
}

func TestMachine_CancelAlwaysPossibleFromNonTerminal(t *testing.T) {
	nonTerminal := []State{
		StateInitialized, StateParsing, StatePlanning, StateApprovalPending,
		StateApproved, StateExecuting, StatePaused, StateFailed, StateRetrying,
	}

	for _, from := range nonTerminal {
		m := newTestMachine(t, nil)
		if from != StateInitialized {
			driveTo(t, m, from)
		}
		assert.True(t, m.Cancel("user abort"), "cancel from %s", from)
		assert.Equal(t, StateCancelled, m.CurrentState())
	}
}

func TestMachine_IdempotentTerminality(t *testing.T) {
	for _, terminal := range []State{StateCompleted, StateCancelled} {
		m := newTestMachine(t, nil)
		driveTo(t, m, terminal)
		count := len(m.History())

		assert.False(t, m.TransitionTo(StateExecuting, "reopen", nil))
		assert.False(t, m.Pause())
		assert.False(t, m.Retry("retry"))
		assert.False(t, m.Cancel("again"))
		assert.Len(t, m.History(), count, "unforced calls must not extend history from %s", terminal)

		// Only a forced call may add a transition past a terminal state.
		assert.True(t, m.ForceTransitionTo(StateExecuting, "forced reopen", nil))
		assert.Len(t, m.History(), count+1)
	}
}

func TestMachine_MarkFailedIsForced(t *testing.T) {
	m := newTestMachine(t, nil)
	driveTo(t, m, StateApprovalPending)

	assert.True(t, m.MarkFailed("planner exploded", map[string]any{"stage": "planning"}))
	assert.Equal(t, StateFailed, m.CurrentState())

	assert.True(t, m.Retry("try again"))
	assert.Equal(t, StateRetrying, m.CurrentState())
}

func TestMachine_MarkCompletedOnlyFromExecutingOrApproved(t *testing.T) {
	m := newTestMachine(t, nil)
	assert.False(t, m.MarkCompleted("result"))

	driveTo(t, m, StateExecuting)
	assert.True(t, m.MarkCompleted("result"))
	assert.Equal(t, StateCompleted, m.CurrentState())
}

func TestMachine_RetryOnlyFromFailed(t *testing.T) {
	m := newTestMachine(t, nil)
	driveTo(t, m, StateExecuting)
	assert.False(t, m.Retry("not failed yet"))

	require.True(t, m.TransitionTo(StateFailed, "step failed", nil))
	assert.True(t, m.Retry("retrying after failure"))
}

func TestMachine_SinkReceivesStageTags(t *testing.T) {
	sink := &recordingSink{}
	m := newTestMachine(t, sink)
	driveTo(t, m, StateCompleted)

	stages := make([]string, 0, len(sink.records))
	for _, r := range sink.records {
		stages = append(stages, r.stage)
	}
	assert.Equal(t, []string{"parsing", "parsing", "planning", "execution", "result"}, stages)
	assert.Equal(t, m.RunID(), sink.records[0].runID)
}

func TestMachine_SinkFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{fail: true}
	m := newTestMachine(t, sink)

	assert.True(t, m.TransitionTo(StateParsing, "parse", nil))
	assert.Equal(t, StateParsing, m.CurrentState())
	assert.Len(t, m.History(), 2)
}

func TestMachine_StateInfo(t *testing.T) {
	m := newTestMachine(t, nil)
	driveTo(t, m, StateExecuting)

	info := m.GetStateInfo()
	assert.Equal(t, StateExecuting, info.Current)
	assert.Equal(t, 4, info.TransitionCount)
	require.NotNil(t, info.Last)
	assert.Equal(t, StateExecuting, info.Last.To)
	assert.ElementsMatch(t, []State{StatePaused, StateCompleted, StateFailed, StateRetrying, StateCancelled}, info.AllowedNext)
}

func TestMachine_Snapshot(t *testing.T) {
	m := newTestMachine(t, nil)
	driveTo(t, m, StatePlanning)

	snap := m.Snapshot()
	assert.Equal(t, m.RunID(), snap.ID)
	assert.Equal(t, string(StatePlanning), snap.State)
	require.Len(t, snap.Transitions, 3)
	_, hasFrom := snap.Transitions[0]["from_state"]
	assert.False(t, hasFrom, "initializing transition has no from_state")
}
