package tool

import (
	"context"
	"fmt"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/team"
)

// shareResultTool publishes an intermediate result to the other members of a
// team through the coordinator. Agents invoke it when a finding is useful to
// teammates before the step completes.
type shareResultTool struct {
	coordinator *team.Coordinator
	teams       core.TeamStore
}

// NewShareResultTool constructs the built-in result sharing tool.
func NewShareResultTool(coordinator *team.Coordinator, teams core.TeamStore) Tool {
	return &shareResultTool{coordinator: coordinator, teams: teams}
}

func (t *shareResultTool) Name() string { return "share_result" }

func (t *shareResultTool) Description() string {
	return "Share an intermediate result with the other members of a team. Use when teammates need a finding before the task completes."
}

func (t *shareResultTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"team_id":    map[string]any{"type": "string", "description": "Team to share with"},
			"from_agent": map[string]any{"type": "string", "description": "Sharing agent id"},
			"result":     map[string]any{"type": "object", "description": "Result payload to share"},
			"targets": map[string]any{
				"type":        "array",
				"description": "Optional explicit recipient agent ids; defaults to every other member",
			},
		},
		"required": []string{"team_id", "from_agent", "result"},
	}
}

func (t *shareResultTool) Call(ctx context.Context, args map[string]any) (any, error) {
	teamID, _ := args["team_id"].(string)
	fromAgent, _ := args["from_agent"].(string)
	result, _ := args["result"].(map[string]any)
	if teamID == "" || fromAgent == "" || result == nil {
		return nil, NewToolError(t.Name(), "team_id, from_agent and result are required", "VALIDATION_ERROR")
	}

	var targets []string
	if raw, ok := args["targets"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" {
				targets = append(targets, s)
			}
		}
	}

	tm, err := t.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, &ToolError{
			Tool:    t.Name(),
			Message: fmt.Sprintf("resolve team %s: %v", teamID, err),
			Code:    "EXECUTION_ERROR",
		}
	}

	recipients, sent, err := t.coordinator.ShareResult(ctx, tm, fromAgent, result, targets...)
	if err != nil {
		return nil, &ToolError{
			Tool:    t.Name(),
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return map[string]any{
		"shared_with":   recipients,
		"messages_sent": sent,
	}, nil
}
