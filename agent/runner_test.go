package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/a2a"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/registry"
)

// wires a ModelAgent behind the in-process transport and returns a runner
// targeting it.
func newAgentFixture(t *testing.T, m model.Model, optFns ...func(o *ModelAgentOptions)) (*Runner, *ModelAgent) {
	t.Helper()

	identity := core.AgentIdentity{ID: "worker-1", Name: "worker"}
	modelAgent := NewModelAgent(identity, m, optFns...)

	transport := a2a.NewInProcTransport()
	transport.Register(identity.ID, modelAgent.Handle)

	reg := registry.NewInMemoryRegistry()
	reg.Register(identity)

	return NewRunner(transport, reg), modelAgent
}

func TestRunner_RoundTrip(t *testing.T) {
	m := model.NewMockModel("worker")
	m.AddResponse("summarize", "A concise summary of the findings.")

	runner, _ := newAgentFixture(t, m)

	result, err := runner.Run(context.Background(), "worker-1", "summarize the findings", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionSuccess, result.Status)
	assert.Equal(t, "A concise summary of the findings.", result.Result)
	assert.Equal(t, "worker-1", result.Metadata["agent_id"])
}

func TestRunner_UnknownAgent(t *testing.T) {
	runner, _ := newAgentFixture(t, model.NewMockModel("worker"))

	_, err := runner.Run(context.Background(), "nobody", "do something", nil)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRunner_AgentErrorBecomesFailedResult(t *testing.T) {
	// An empty task makes the agent answer with an error payload.
	runner, _ := newAgentFixture(t, model.NewMockModel("worker"))

	result, err := runner.Run(context.Background(), "worker-1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, core.ExecutionFailed, result.Status)
	assert.Contains(t, result.Message, "no task")
}

func TestModelAgent_InstructionSeesTaskContext(t *testing.T) {
	m := model.NewMockModel("worker")

	var captured model.Request
	probe := &requestProbe{inner: m, captured: &captured}

	runner, _ := newAgentFixture(t, probe, func(o *ModelAgentOptions) {
		o.Instruction = NewInstruction("Act as a {{.role}}.")
	})

	_, err := runner.Run(context.Background(), "worker-1", "inspect the logs", map[string]any{"role": "site reliability engineer"})
	require.NoError(t, err)
	assert.Equal(t, "Act as a site reliability engineer.", captured.Instructions)
	assert.Equal(t, "inspect the logs", captured.Prompt)
}

func TestModelAgent_PreviousResultThreadedIntoPrompt(t *testing.T) {
	m := model.NewMockModel("worker")

	var captured model.Request
	probe := &requestProbe{inner: m, captured: &captured}
	modelAgent := NewModelAgent(core.AgentIdentity{ID: "worker-2"}, probe)

	sender := core.AgentIdentity{ID: "coordinator"}
	msg := core.NewRequest(sender, "worker-2", map[string]any{
		"task":            "refine the draft",
		"previous_result": "the first draft",
	})

	reply, err := modelAgent.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "success", reply.Payload["status"])
	assert.Contains(t, captured.Prompt, "refine the draft")
	assert.Contains(t, captured.Prompt, "the first draft")
}

func TestModelAgent_NotificationIsAbsorbed(t *testing.T) {
	modelAgent := NewModelAgent(core.AgentIdentity{ID: "worker-3"}, model.NewMockModel("worker"))

	msg := core.NewNotification(core.AgentIdentity{ID: "coordinator"}, "worker-3", map[string]any{"event": "round_complete"})

	reply, err := modelAgent.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Nil(t, reply)
}

// requestProbe records the last request before delegating to the inner model.
type requestProbe struct {
	inner    model.Model
	captured *model.Request
}

func (p *requestProbe) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	*p.captured = req
	return p.inner.Generate(ctx, req)
}

func (p *requestProbe) Info() model.Info { return p.inner.Info() }
