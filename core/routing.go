package core

// RouteKind discriminates the target of a RoutingDecision. Modeling the
// decision as a tagged variant makes the "exactly one target or none"
// invariant explicit instead of relying on optional fields checked in
// priority order.
type RouteKind string

// Routing targets.
const (
	RouteNone  RouteKind = "none"
	RouteTool  RouteKind = "tool"
	RouteAgent RouteKind = "agent"
	RouteTeam  RouteKind = "team"
)

// RoutingDecision names the executor for one step. Exactly one of Tool, Agent
// or Team is meaningful, selected by Kind; RouteNone means the pipeline falls
// back to direct model inference. Decisions are produced fresh per step and
// not persisted beyond the run.
type RoutingDecision struct {
	Kind      RouteKind `json:"kind"`
	Tool      string    `json:"tool,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Team      string    `json:"team,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
}

// Unrouted returns the degenerate decision used when routing fails or the
// router declines to pick a target.
func Unrouted(reasoning string) RoutingDecision {
	return RoutingDecision{Kind: RouteNone, Reasoning: reasoning}
}

// RouteToTool builds a decision targeting a named tool.
func RouteToTool(tool, reasoning string) RoutingDecision {
	return RoutingDecision{Kind: RouteTool, Tool: tool, Reasoning: reasoning}
}

// RouteToAgent builds a decision targeting a single agent.
func RouteToAgent(agentID, reasoning string) RoutingDecision {
	return RoutingDecision{Kind: RouteAgent, Agent: agentID, Reasoning: reasoning}
}

// RouteToTeam builds a decision targeting a team.
func RouteToTeam(teamID, reasoning string) RoutingDecision {
	return RoutingDecision{Kind: RouteTeam, Team: teamID, Reasoning: reasoning}
}
