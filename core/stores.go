package core

import "context"

// PlanStore persists plans between pipeline stages.
type PlanStore interface {
	PutPlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)
}

// TeamStore persists teams and their membership records.
type TeamStore interface {
	PutTeam(ctx context.Context, team *Team) error
	GetTeam(ctx context.Context, id string) (*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	DeleteTeam(ctx context.Context, id string) error
}

// RunSnapshot is the persisted shape of a workflow run: its current state and
// full transition history. The workflow package owns the live run; stores only
// see immutable snapshots.
type RunSnapshot struct {
	ID          string           `json:"id"`
	State       string           `json:"current_state"`
	Transitions []map[string]any `json:"transitions"`
}

// RunStore persists workflow run snapshots.
type RunStore interface {
	PutRun(ctx context.Context, snapshot RunSnapshot) error
	GetRun(ctx context.Context, id string) (RunSnapshot, error)
}
