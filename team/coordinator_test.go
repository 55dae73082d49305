package team

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/registry"
)

// recordingTransport captures sent messages and answers requests from a
// scripted reply table.
type recordingTransport struct {
	mu       sync.Mutex
	requests []core.Message
	notifies []core.Message
	replies  map[string]map[string]any // recipient -> response payload
	failFor  map[string]error          // recipient -> request error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		replies: map[string]map[string]any{},
		failFor: map[string]error{},
	}
}

func (t *recordingTransport) Request(_ context.Context, msg core.Message, _ time.Duration) (*core.Message, error) {
	t.mu.Lock()
	t.requests = append(t.requests, msg)
	t.mu.Unlock()

	if err, ok := t.failFor[msg.Recipient]; ok {
		return nil, err
	}

	payload := t.replies[msg.Recipient]
	if payload == nil {
		payload = map[string]any{"result": "ok from " + msg.Recipient}
	}
	resp := core.NewResponse(core.AgentIdentity{ID: msg.Recipient}, msg.Sender.ID, msg.ID, payload)
	return &resp, nil
}

func (t *recordingTransport) Notify(_ context.Context, msg core.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifies = append(t.notifies, msg)
	return nil
}

func (t *recordingTransport) sentRequests() []core.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := make([]core.Message, len(t.requests))
	copy(msgs, t.requests)
	return msgs
}

func (t *recordingTransport) sentNotifies() []core.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	msgs := make([]core.Message, len(t.notifies))
	copy(msgs, t.notifies)
	return msgs
}

func newTestTeam(strategy core.CoordinationStrategy, agentIDs ...string) (*core.Team, *registry.InMemoryRegistry) {
	members := make([]core.TeamMember, 0, len(agentIDs))
	reg := registry.NewInMemoryRegistry()
	for _, id := range agentIDs {
		members = append(members, core.TeamMember{AgentID: id, Name: "agent " + id})
		reg.Register(core.AgentIdentity{ID: id})
	}
	team := core.NewTeam("crew", strategy, members...)
	team.Activate()
	return team, reg
}

func TestCoordinator_Preconditions(t *testing.T) {
	tr := newRecordingTransport()
	reg := registry.NewInMemoryRegistry()
	c := NewCoordinator(tr, reg)

	t.Run("empty team", func(t *testing.T) {
		team := core.NewTeam("empty", core.StrategyParallel)
		team.Activate()
		_, err := c.DistributeTask(context.Background(), team, "task", nil)
		assert.ErrorIs(t, err, ErrEmptyTeam)
	})

	t.Run("inactive team", func(t *testing.T) {
		team := core.NewTeam("draft", core.StrategyParallel, core.TeamMember{AgentID: "a"})
		_, err := c.DistributeTask(context.Background(), team, "task", nil)
		assert.ErrorIs(t, err, ErrTeamNotActive)
	})

	t.Run("unknown role", func(t *testing.T) {
		team, _ := newTestTeam(core.StrategyParallel, "a", "b")
		_, err := c.DistributeTask(context.Background(), team, "task", nil,
			func(o *DistributeOptions) { o.Role = "reviewer" })
		assert.ErrorIs(t, err, ErrUnknownRole)
	})

	// Precondition failures must abort before any message goes out.
	assert.Empty(t, tr.sentRequests())
	assert.Empty(t, tr.sentNotifies())
}

func TestCoordinator_ParallelFaultIsolation(t *testing.T) {
	team, reg := newTestTeam(core.StrategyParallel, "a", "b", "c", "d")
	reg.SetStatus("b", core.AgentInactive)

	tr := newRecordingTransport()
	tr.failFor["c"] = errors.New("connection refused")
	c := NewCoordinator(tr, reg)

	result, err := c.DistributeTask(context.Background(), team, "analyze logs", nil)
	require.NoError(t, err)

	assert.Equal(t, core.StrategyParallel, result.StrategyUsed)
	assert.Equal(t, []string{"a", "b", "c", "d"}, result.DistributedTo)
	assert.Equal(t, 4, result.MessagesSent)
	require.Len(t, result.Responses, 4)

	// Aggregation preserves member order regardless of arrival order.
	assert.Equal(t, "a", result.Responses[0].AgentID)
	assert.False(t, result.Responses[0].Failed())
	assert.True(t, result.Responses[1].Failed(), "inactive agent captured per member")
	assert.True(t, result.Responses[2].Failed(), "transport failure captured per member")
	assert.False(t, result.Responses[3].Failed(), "siblings unaffected by failures")
}

// Target selection for SEQUENTIAL restricts to the first member even though
// delivery threads results along a chain. This mirrors the legacy behavior
// on purpose; a true sequential chain would select every member.
func TestCoordinator_SequentialSelectsFirstMemberOnly(t *testing.T) {
	team, reg := newTestTeam(core.StrategySequential, "a", "b", "c")
	tr := newRecordingTransport()
	c := NewCoordinator(tr, reg)

	result, err := c.DistributeTask(context.Background(), team, "summarize", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, result.DistributedTo)
	assert.Equal(t, 1, result.MessagesSent)
	require.Len(t, tr.sentRequests(), 1)

	payload := tr.sentRequests()[0].Payload
	assert.EqualValues(t, 1, payload["step_number"])
	assert.EqualValues(t, 1, payload["total_steps"])
}

func TestCoordinator_PipelineThreadsPreviousResult(t *testing.T) {
	// Role selection overrides strategy selection, so a role filter exercises
	// the chain across several members.
	reg := registry.NewInMemoryRegistry()
	var members []core.TeamMember
	for _, id := range []string{"a", "b", "c"} {
		members = append(members, core.TeamMember{AgentID: id, Role: "stage"})
		reg.Register(core.AgentIdentity{ID: id})
	}
	team := core.NewTeam("line", core.StrategyPipeline, members...)
	team.Activate()

	tr := newRecordingTransport()
	tr.replies["a"] = map[string]any{"result": "draft"}
	tr.replies["b"] = map[string]any{"result": "edited"}
	c := NewCoordinator(tr, reg)

	result, err := c.DistributeTask(context.Background(), team, "write report", nil,
		func(o *DistributeOptions) { o.Role = "stage" })
	require.NoError(t, err)
	require.Len(t, result.Responses, 3)

	reqs := tr.sentRequests()
	require.Len(t, reqs, 3)

	assert.Nil(t, reqs[0].Payload["previous_result"])
	assert.Equal(t, map[string]any{"result": "draft"}, reqs[1].Payload["previous_result"])
	assert.Equal(t, map[string]any{"result": "edited"}, reqs[2].Payload["previous_result"])

	assert.EqualValues(t, 1, reqs[0].Payload["pipeline_stage"])
	assert.EqualValues(t, 3, reqs[0].Payload["total_stages"])
}

func TestCoordinator_HierarchicalMessagesLeadOnly(t *testing.T) {
	team, reg := newTestTeam(core.StrategyHierarchical, "a", "b", "c")
	require.True(t, team.SetLead("b"))

	tr := newRecordingTransport()
	c := NewCoordinator(tr, reg)

	result, err := c.DistributeTask(context.Background(), team, "coordinate release", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, result.DistributedTo)
	assert.Equal(t, 1, result.MessagesSent)

	reqs := tr.sentRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "b", reqs[0].Recipient)

	roster, ok := reqs[0].Payload["team_members"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, roster, 2, "roster excludes the lead")
	assert.Equal(t, "a", roster[0]["agent_id"])
	assert.Equal(t, "c", roster[1]["agent_id"])
}

func TestCoordinator_HierarchicalFallsBackToFirstMember(t *testing.T) {
	team, reg := newTestTeam(core.StrategyHierarchical, "a", "b")

	tr := newRecordingTransport()
	c := NewCoordinator(tr, reg)

	result, err := c.DistributeTask(context.Background(), team, "task", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.DistributedTo)
}

func TestCoordinator_CollaborativeBroadcastsRoundOneResults(t *testing.T) {
	team, reg := newTestTeam(core.StrategyCollaborative, "a", "b", "c")
	tr := newRecordingTransport()
	tr.replies["a"] = map[string]any{"result": "finding A"}
	tr.replies["b"] = map[string]any{"result": "finding B"}
	tr.replies["c"] = map[string]any{"result": "finding C"}
	c := NewCoordinator(tr, reg)

	result, err := c.DistributeTask(context.Background(), team, "investigate", nil)
	require.NoError(t, err)

	// Three round-1 requests plus a broadcast reaching all three members.
	assert.Equal(t, 6, result.MessagesSent)
	require.Len(t, result.Responses, 3)
	assert.Equal(t, map[string]any{"result": "finding A"}, result.Responses[0].Payload)

	notes := tr.sentNotifies()
	require.Len(t, notes, 1)
	assert.Equal(t, core.Broadcast, notes[0].Recipient)
	assert.Equal(t, team.ID, notes[0].Context["team_id"])

	results, ok := notes[0].Payload["results"].([]map[string]any)
	require.True(t, ok)
	assert.Len(t, results, 3)
}

func TestCoordinator_ShareResultDefaultsToOtherMembers(t *testing.T) {
	team, reg := newTestTeam(core.StrategyParallel, "a", "b", "c")
	tr := newRecordingTransport()
	c := NewCoordinator(tr, reg)

	recipients, sent, err := c.ShareResult(context.Background(), team, "a", map[string]any{"answer": 42})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, recipients)
	assert.Equal(t, 2, sent)

	notes := tr.sentNotifies()
	require.Len(t, notes, 2)
	assert.Equal(t, "a", notes[0].Sender.ID)
	assert.Equal(t, "a", notes[0].Payload["from"])
}

func TestCoordinator_ShareResultSkipsUnresolvableRecipient(t *testing.T) {
	team, reg := newTestTeam(core.StrategyParallel, "a", "b", "c")
	reg.Deregister("c")

	tr := newRecordingTransport()
	c := NewCoordinator(tr, reg)

	recipients, sent, err := c.ShareResult(context.Background(), team, "a", map[string]any{"answer": 42})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, recipients)
	assert.Equal(t, 1, sent)
}

func TestCoordinator_ShareResultUnknownSender(t *testing.T) {
	team, reg := newTestTeam(core.StrategyParallel, "a", "b")
	tr := newRecordingTransport()
	c := NewCoordinator(tr, reg)

	_, _, err := c.ShareResult(context.Background(), team, "ghost", nil)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}
