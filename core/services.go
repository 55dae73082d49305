package core

import (
	"context"
	"errors"
)

// Collaborator errors surfaced by registries and runners.
var (
	// ErrAgentNotFound is returned by Registry.Resolve for unknown agent ids.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentInactive is returned by Registry.Resolve when the agent exists
	// but is not accepting work.
	ErrAgentInactive = errors.New("agent not active")
)

// Planner decomposes a task description into an ordered plan. Planning
// failure aborts a pipeline run: with no plan there is nothing to route or
// execute.
type Planner interface {
	GeneratePlan(ctx context.Context, taskDescription string, taskContext map[string]any) (*Plan, error)
}

// Router picks an executor for one step. Routing is best effort: callers
// degrade a routing failure to an unrouted decision rather than aborting.
type Router interface {
	RouteTask(ctx context.Context, stepDescription, taskType string, requirements, taskContext map[string]any) (RoutingDecision, error)
}

// ToolRunner executes a named tool with structured input.
type ToolRunner interface {
	Run(ctx context.Context, toolRef string, input map[string]any, taskContext map[string]any) (ExecutionResult, error)
}

// AgentRunner executes a task on a single agent.
type AgentRunner interface {
	Run(ctx context.Context, agentID string, input string, taskContext map[string]any) (ExecutionResult, error)
}

// TeamRunner executes a task across a team and aggregates member responses
// into one execution result.
type TeamRunner interface {
	Run(ctx context.Context, teamID string, input string, taskContext map[string]any) (ExecutionResult, error)
}

// AgentStatus reports whether an agent is accepting work.
type AgentStatus string

// Agent statuses tracked by a Registry.
const (
	AgentActive   AgentStatus = "active"
	AgentInactive AgentStatus = "inactive"
)

// Registry is the agent directory: it resolves an agent id to a live
// identity. Resolve returns ErrAgentNotFound or ErrAgentInactive when the
// agent cannot receive messages.
type Registry interface {
	Resolve(ctx context.Context, agentID string) (AgentIdentity, error)
}

// EventSink records run lifecycle events keyed by run id, trace id and a
// coarse stage tag. Sinks are append-only and best effort: callers log and
// swallow sink failures, they never become load-bearing for correctness.
type EventSink interface {
	Record(ctx context.Context, runID, traceID, stage, message string, metadata map[string]any) error
}
