package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
)

func TestInMemoryStore_Plans(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	plan := core.NewPlan("ship the release", []core.Step{{Description: "tag the commit"}})
	require.NoError(t, s.PutPlan(ctx, plan))

	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Goal, got.Goal)

	_, err = s.GetPlan(ctx, "missing")
	assert.Error(t, err)

	assert.Error(t, s.PutPlan(ctx, nil))
}

func TestInMemoryStore_Teams(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	team := core.NewTeam("crew", core.StrategyParallel, core.TeamMember{AgentID: "a"})
	require.NoError(t, s.PutTeam(ctx, team))

	got, err := s.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "crew", got.Name)

	teams, err := s.ListTeams(ctx)
	require.NoError(t, err)
	assert.Len(t, teams, 1)

	require.NoError(t, s.DeleteTeam(ctx, team.ID))
	_, err = s.GetTeam(ctx, team.ID)
	assert.Error(t, err)
	assert.Error(t, s.DeleteTeam(ctx, team.ID))
}

func TestInMemoryStore_Runs(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	snapshot := core.RunSnapshot{
		ID:    "run-1",
		State: "EXECUTING",
		Transitions: []map[string]any{
			{"from": "CREATED", "to": "PARSING"},
		},
	}
	require.NoError(t, s.PutRun(ctx, snapshot))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "EXECUTING", got.State)
	assert.Len(t, got.Transitions, 1)

	_, err = s.GetRun(ctx, "missing")
	assert.Error(t, err)
}
