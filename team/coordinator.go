// Package team implements multi-agent task distribution over the A2A
// transport. A Coordinator fans one task out to a team's members under the
// team's coordination strategy and aggregates the member responses.
package team

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// Precondition errors raised before any message is sent.
var (
	// ErrEmptyTeam is returned when distributing to a team with no members.
	ErrEmptyTeam = errors.New("team has no members")
	// ErrTeamNotActive is returned when the team is not accepting work.
	ErrTeamNotActive = errors.New("team is not active")
	// ErrUnknownRole is returned when a requested role has no members.
	ErrUnknownRole = errors.New("no team members hold the requested role")
)

// MemberResponse is one member's outcome within a distribution. Exactly one
// of Payload and Error is meaningful: a delivery or resolution failure is
// captured per member, it never aborts sibling deliveries.
type MemberResponse struct {
	AgentID string         `json:"agent_id"`
	Role    string         `json:"role,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Failed reports whether this member's delivery or execution failed.
func (r MemberResponse) Failed() bool { return r.Error != "" }

// DistributionResult aggregates one task distribution across a team.
type DistributionResult struct {
	DistributedTo []string                  `json:"distributed_to"`
	StrategyUsed  core.CoordinationStrategy `json:"strategy_used"`
	MessagesSent  int                       `json:"messages_sent"`
	Responses     []MemberResponse          `json:"responses"`
}

// Coordinator distributes tasks to teams and shares results between members.
type Coordinator struct {
	transport core.Transport
	registry  core.Registry
	identity  core.AgentIdentity
	timeout   time.Duration
	logger    logging.Logger
}

// Options configures a Coordinator.
type Options struct {
	// Identity is the sender identity stamped on outgoing messages.
	Identity core.AgentIdentity

	// Timeout bounds each request/response exchange. Defaults to 30s.
	Timeout time.Duration

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewCoordinator creates a coordinator over the given transport and agent
// directory.
func NewCoordinator(transport core.Transport, registry core.Registry, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Identity: core.AgentIdentity{ID: "coordinator", Name: "coordinator"},
		Timeout:  30 * time.Second,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Coordinator{
		transport: transport,
		registry:  registry,
		identity:  opts.Identity,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// DistributeOptions tunes one distribution call.
type DistributeOptions struct {
	// Role restricts target selection to members holding this role.
	Role string
}

// DistributeTask delivers a task to a team under its coordination strategy
// and returns the aggregated member responses. Precondition failures (empty
// team, inactive team, unknown role) abort before any message is sent;
// per-member delivery failures are captured in the result instead.
func (c *Coordinator) DistributeTask(ctx context.Context, team *core.Team, task string, taskContext map[string]any, optFns ...func(o *DistributeOptions)) (DistributionResult, error) {
	opts := DistributeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	start := time.Now()

	targets, err := c.selectTargets(team, opts.Role)
	if err != nil {
		return DistributionResult{}, err
	}

	result := DistributionResult{StrategyUsed: team.Strategy}
	for _, m := range targets {
		result.DistributedTo = append(result.DistributedTo, m.AgentID)
	}

	switch team.Strategy {
	case core.StrategySequential:
		result.Responses, result.MessagesSent = c.sendChain(ctx, team, targets, task, taskContext, "step_number", "total_steps")
	case core.StrategyPipeline:
		result.Responses, result.MessagesSent = c.sendChain(ctx, team, targets, task, taskContext, "pipeline_stage", "total_stages")
	case core.StrategyParallel:
		result.Responses, result.MessagesSent = c.sendParallel(ctx, team, targets, task, taskContext)
	case core.StrategyHierarchical:
		result.Responses, result.MessagesSent = c.sendToLead(ctx, team, targets, task, taskContext)
	case core.StrategyCollaborative:
		result.Responses, result.MessagesSent = c.sendCollaborative(ctx, team, targets, task, taskContext)
	default:
		return DistributionResult{}, fmt.Errorf("unknown coordination strategy %q", team.Strategy)
	}

	if tl, ok := c.logger.(*logging.TaskMeshLogger); ok {
		tl.LogCoordination(string(team.Strategy), team.ID, result.MessagesSent, time.Since(start), nil)
	} else {
		c.logger.Info("coordination completed",
			"strategy", team.Strategy, "team_id", team.ID,
			"messages_sent", result.MessagesSent, "duration", time.Since(start))
	}

	return result, nil
}

// selectTargets applies the role filter and the strategy's selection rule.
func (c *Coordinator) selectTargets(team *core.Team, role string) ([]core.TeamMember, error) {
	if team == nil || len(team.MemberList()) == 0 {
		return nil, ErrEmptyTeam
	}
	if team.CurrentStatus() != core.TeamActive {
		return nil, fmt.Errorf("team %s: %w", team.ID, ErrTeamNotActive)
	}

	if role != "" {
		members := team.MembersByRole(role)
		if len(members) == 0 {
			return nil, fmt.Errorf("role %q in team %s: %w", role, team.ID, ErrUnknownRole)
		}
		return members, nil
	}

	members := team.MemberList()
	switch team.Strategy {
	case core.StrategyHierarchical:
		if lead, ok := team.Lead(); ok {
			return []core.TeamMember{lead}, nil
		}
		return members[:1], nil
	case core.StrategySequential:
		// Deliberately matches the legacy selection: only the first member
		// participates even though delivery threads results along a chain.
		return members[:1], nil
	default:
		return members, nil
	}
}

// request resolves the member through the directory, sends one REQUEST and
// awaits the RESPONSE. Resolution and delivery failures come back as error
// responses, never as errors.
func (c *Coordinator) request(ctx context.Context, team *core.Team, m core.TeamMember, payload map[string]any) MemberResponse {
	resp := MemberResponse{AgentID: m.AgentID, Role: m.Role}

	if _, err := c.registry.Resolve(ctx, m.AgentID); err != nil {
		resp.Error = err.Error()
		return resp
	}

	msg := core.NewRequest(c.identity, m.AgentID, payload).WithContext("team_id", team.ID)
	reply, err := c.transport.Request(ctx, msg, c.timeout)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	resp.Payload = reply.Payload
	return resp
}

func taskPayload(task string, taskContext map[string]any) map[string]any {
	payload := map[string]any{"task": task}
	if len(taskContext) > 0 {
		payload["context"] = taskContext
	}
	return payload
}

// sendChain delivers the task hop by hop, threading each hop's payload into
// the next request as previous_result. A failed hop contributes an error
// entry and the chain continues without a previous result.
func (c *Coordinator) sendChain(ctx context.Context, team *core.Team, targets []core.TeamMember, task string, taskContext map[string]any, posKey, totalKey string) ([]MemberResponse, int) {
	responses := make([]MemberResponse, 0, len(targets))
	sent := 0

	var previous map[string]any
	for i, m := range targets {
		payload := taskPayload(task, taskContext)
		payload[posKey] = i + 1
		payload[totalKey] = len(targets)
		if previous != nil {
			payload["previous_result"] = previous
		}

		sent++
		resp := c.request(ctx, team, m, payload)
		responses = append(responses, resp)

		previous = resp.Payload
	}

	return responses, sent
}

// sendParallel fans the task out to every target concurrently and joins all
// of them. Aggregation preserves the caller-provided member order regardless
// of arrival order.
func (c *Coordinator) sendParallel(ctx context.Context, team *core.Team, targets []core.TeamMember, task string, taskContext map[string]any) ([]MemberResponse, int) {
	responses := make([]MemberResponse, len(targets))

	var wg sync.WaitGroup
	for i, m := range targets {
		wg.Add(1)
		go func(i int, m core.TeamMember) {
			defer wg.Done()
			responses[i] = c.request(ctx, team, m, taskPayload(task, taskContext))
		}(i, m)
	}
	wg.Wait()

	return responses, len(targets)
}

// sendToLead sends exactly one request to the lead carrying the roster of
// the other members; sub-delegation is the lead's responsibility.
func (c *Coordinator) sendToLead(ctx context.Context, team *core.Team, targets []core.TeamMember, task string, taskContext map[string]any) ([]MemberResponse, int) {
	lead := targets[0]

	roster := make([]map[string]any, 0, len(team.MemberList())-1)
	for _, m := range team.MemberList() {
		if m.AgentID == lead.AgentID {
			continue
		}
		roster = append(roster, map[string]any{"agent_id": m.AgentID, "name": m.Name})
	}

	payload := taskPayload(task, taskContext)
	payload["team_members"] = roster

	return []MemberResponse{c.request(ctx, team, lead, payload)}, 1
}

// sendCollaborative runs a parallel fan-out round, then broadcasts the
// collected results to the whole team fire-and-forget. The broadcast reaches
// every member, so it counts one message per member; an N-member round totals
// N requests plus N broadcast deliveries. The returned responses are the
// round-1 results.
func (c *Coordinator) sendCollaborative(ctx context.Context, team *core.Team, targets []core.TeamMember, task string, taskContext map[string]any) ([]MemberResponse, int) {
	responses, sent := c.sendParallel(ctx, team, targets, task, taskContext)

	results := make([]map[string]any, 0, len(responses))
	for _, r := range responses {
		if r.Failed() {
			continue
		}
		results = append(results, map[string]any{"agent_id": r.AgentID, "result": r.Payload})
	}

	note := core.NewNotification(c.identity, core.Broadcast, map[string]any{
		"task":    task,
		"results": results,
	}).WithContext("team_id", team.ID)

	for _, m := range team.MemberList() {
		if m.AgentID == c.identity.ID {
			continue
		}
		sent++
	}
	if err := c.transport.Notify(ctx, note); err != nil {
		c.logger.Warn("collaborative result broadcast failed", "team_id", team.ID, "error", err)
	}

	return responses, sent
}

// ShareResult sends one agent's result to other team members fire-and-forget.
// Recipients default to every other member. It returns the recipient set and
// the number of notifications sent; unresolvable recipients are skipped.
func (c *Coordinator) ShareResult(ctx context.Context, team *core.Team, fromAgentID string, result map[string]any, targetAgents ...string) ([]string, int, error) {
	if team == nil || len(team.MemberList()) == 0 {
		return nil, 0, ErrEmptyTeam
	}

	sender, err := c.registry.Resolve(ctx, fromAgentID)
	if err != nil {
		return nil, 0, fmt.Errorf("sender %s: %w", fromAgentID, err)
	}

	recipients := targetAgents
	if len(recipients) == 0 {
		for _, m := range team.MemberList() {
			if m.AgentID == fromAgentID {
				continue
			}
			recipients = append(recipients, m.AgentID)
		}
	}

	payload := map[string]any{"from": fromAgentID, "result": result}

	delivered := make([]string, 0, len(recipients))
	sent := 0
	for _, recipient := range recipients {
		if _, err := c.registry.Resolve(ctx, recipient); err != nil {
			c.logger.Warn("skipping unresolvable recipient", "agent_id", recipient, "error", err)
			continue
		}

		note := core.NewNotification(sender, recipient, payload).WithContext("team_id", team.ID)
		if err := c.transport.Notify(ctx, note); err != nil {
			c.logger.Warn("result share failed", "agent_id", recipient, "error", err)
			continue
		}

		delivered = append(delivered, recipient)
		sent++
	}

	return delivered, sent, nil
}
