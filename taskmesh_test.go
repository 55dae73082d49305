package taskmesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/agent"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/events"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/tool"
)

func TestTaskMesh_DefaultsExecuteATask(t *testing.T) {
	// With the default mock model the planner falls back to a single step
	// and the router degrades to direct inference.
	tm := New()

	result := tm.ExecuteTask(context.Background(), core.TaskRequest{
		Description: "summarize the incident findings",
	})

	assert.Equal(t, core.TaskSuccess, result.Status)
	assert.Equal(t, "result", result.StageReached)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, core.RouteNone, result.Steps[0].Routing.Kind)
}

func TestTaskMesh_AgentRoutedExecution(t *testing.T) {
	m := model.NewMockModel("orchestrator")
	m.AddResponse("Decompose this task",
		`{"steps": [{"description": "summarize the incident findings", "type": "action"}]}`)
	m.AddResponse("Pick the best executor",
		`{"target_type": "agent", "target": "worker-1", "reasoning": "specialist"}`)

	workerModel := model.NewMockModel("worker")
	workerModel.AddResponse("summarize", "The incident findings were summarized for the review.")

	tm := New(func(o *Options) { o.Model = m })
	require.NoError(t, tm.RegisterAgent(
		agent.NewModelAgent(core.AgentIdentity{ID: "worker-1", Name: "worker"}, workerModel),
	))

	result := tm.ExecuteTask(context.Background(), core.TaskRequest{
		Description: "summarize the incident findings",
	})

	assert.Equal(t, core.TaskSuccess, result.Status)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, core.RouteAgent, result.Steps[0].Routing.Kind)
	assert.Equal(t, "The incident findings were summarized for the review.", result.Steps[0].Execution.Result)
}

func TestTaskMesh_TeamRoutedExecution(t *testing.T) {
	workerModel := model.NewMockModel("worker")
	workerModel.AddResponse("inspect", "The incident records were inspected by the crew.")

	tm := New()
	for _, id := range []string{"analyst-1", "analyst-2"} {
		require.NoError(t, tm.RegisterAgent(
			agent.NewModelAgent(core.AgentIdentity{ID: id}, workerModel),
		))
	}

	crew, err := tm.CreateTeam(context.Background(), "analysts", core.StrategyParallel,
		core.TeamMember{AgentID: "analyst-1", Name: "one"},
		core.TeamMember{AgentID: "analyst-2", Name: "two"},
	)
	require.NoError(t, err)

	dist, err := tm.Coordinator().DistributeTask(context.Background(), crew, "inspect the incident records", nil)
	require.NoError(t, err)

	assert.Equal(t, core.StrategyParallel, dist.StrategyUsed)
	assert.Len(t, dist.Responses, 2)
	for _, resp := range dist.Responses {
		assert.False(t, resp.Failed())
		assert.Equal(t, "The incident records were inspected by the crew.", resp.Payload["result"])
	}
}

func TestTaskMesh_TeamLifecycle(t *testing.T) {
	tm := New()
	ctx := context.Background()

	crew, err := tm.CreateTeam(ctx, "crew", core.StrategySequential, core.TeamMember{AgentID: "a"})
	require.NoError(t, err)
	assert.Equal(t, core.TeamActive, crew.CurrentStatus())

	got, err := tm.GetTeam(ctx, crew.ID)
	require.NoError(t, err)
	assert.Equal(t, "crew", got.Name)

	teams, err := tm.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 1)

	require.NoError(t, tm.DeleteTeam(ctx, crew.ID))
	_, err = tm.GetTeam(ctx, crew.ID)
	assert.Error(t, err)
}

func TestTaskMesh_ToolRoutedExecution(t *testing.T) {
	m := model.NewMockModel("orchestrator")
	m.AddResponse("Decompose this task",
		`{"steps": [{"description": "look up the deployment region", "type": "action"}]}`)
	m.AddResponse("Pick the best executor",
		`{"target_type": "tool", "target": "region_lookup", "reasoning": "structured lookup"}`)

	tm := New(func(o *Options) { o.Model = m })
	tm.RegisterTool(tool.NewFunctionTool("region_lookup", "Look up the deployment region",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"input": map[string]any{"type": "string"}},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return "The deployment region lookup returned eu-central for the cluster.", nil
		},
	))

	result := tm.ExecuteTask(context.Background(), core.TaskRequest{
		Description: "look up the deployment region",
	})

	assert.Equal(t, core.TaskSuccess, result.Status)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, core.RouteTool, result.Steps[0].Routing.Kind)
}

func TestTaskMesh_RunAndPlanArePersisted(t *testing.T) {
	sink := events.NewInMemorySink()
	tm := New(func(o *Options) { o.Sink = sink })

	result := tm.ExecuteTask(context.Background(), core.TaskRequest{
		Description: "summarize the incident findings",
	})
	require.Equal(t, core.TaskSuccess, result.Status)

	snapshot, err := tm.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", snapshot.State)
	assert.NotEmpty(t, snapshot.Transitions)

	assert.NotEmpty(t, sink.ForRun(result.RunID))
}
