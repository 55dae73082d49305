package team

import (
	"context"
	"fmt"

	"github.com/taskmesh/taskmesh/core"
)

// Runner adapts a Coordinator to the core.TeamRunner contract used by the
// pipeline's execution stage: resolve the team, distribute the task, fold
// the member responses into one execution result.
type Runner struct {
	coordinator *Coordinator
	teams       core.TeamStore
}

// NewRunner creates a team runner.
func NewRunner(coordinator *Coordinator, teams core.TeamStore) *Runner {
	return &Runner{coordinator: coordinator, teams: teams}
}

// Run implements core.TeamRunner. The result is successful when at least one
// member responded; per-member failures are carried in the metadata.
func (r *Runner) Run(ctx context.Context, teamID string, input string, taskContext map[string]any) (core.ExecutionResult, error) {
	team, err := r.teams.GetTeam(ctx, teamID)
	if err != nil {
		return core.ExecutionResult{}, fmt.Errorf("team %s: %w", teamID, err)
	}

	dist, err := r.coordinator.DistributeTask(ctx, team, input, taskContext)
	if err != nil {
		return core.ExecutionResult{}, err
	}

	results := make([]map[string]any, 0, len(dist.Responses))
	failures := make([]map[string]any, 0)
	for _, resp := range dist.Responses {
		if resp.Failed() {
			failures = append(failures, map[string]any{"agent_id": resp.AgentID, "error": resp.Error})
			continue
		}
		results = append(results, map[string]any{"agent_id": resp.AgentID, "result": resp.Payload})
	}

	exec := core.ExecutionResult{
		Result: results,
		Metadata: map[string]any{
			"team_id":        teamID,
			"strategy":       string(dist.StrategyUsed),
			"distributed_to": dist.DistributedTo,
			"messages_sent":  dist.MessagesSent,
		},
	}
	if len(failures) > 0 {
		exec.Metadata["failures"] = failures
	}

	if len(results) == 0 {
		exec.Status = core.ExecutionFailed
		exec.Message = fmt.Sprintf("all %d team members failed", len(dist.Responses))
		return exec, nil
	}

	exec.Status = core.ExecutionSuccess
	exec.Message = fmt.Sprintf("%d of %d team members responded", len(results), len(dist.Responses))
	return exec, nil
}
