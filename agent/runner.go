package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// Runner executes a task on a single remote agent over the A2A transport.
// It implements core.AgentRunner.
//
// A run is one request/response exchange: resolve the agent through the
// registry, send a REQUEST, fold the reply payload into an execution result.
// Resolution failures (unknown or inactive agent) propagate as errors;
// an agent that answers with an error payload becomes a failed result.
type Runner struct {
	transport core.Transport
	registry  core.Registry
	identity  core.AgentIdentity
	timeout   time.Duration
	logger    logging.Logger
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Identity is the sender identity stamped on outgoing requests.
	Identity core.AgentIdentity

	// Timeout bounds the request/response exchange. Defaults to 60s.
	Timeout time.Duration

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewRunner creates an agent runner over the given transport and registry.
func NewRunner(transport core.Transport, registry core.Registry, optFns ...func(o *RunnerOptions)) *Runner {
	opts := RunnerOptions{
		Identity: core.AgentIdentity{ID: "pipeline", Name: "pipeline"},
		Timeout:  60 * time.Second,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		transport: transport,
		registry:  registry,
		identity:  opts.Identity,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// Run implements core.AgentRunner.
func (r *Runner) Run(ctx context.Context, agentID string, input string, taskContext map[string]any) (core.ExecutionResult, error) {
	if _, err := r.registry.Resolve(ctx, agentID); err != nil {
		return core.ExecutionResult{}, fmt.Errorf("resolve agent %s: %w", agentID, err)
	}

	payload := map[string]any{"task": input}
	if len(taskContext) > 0 {
		payload["context"] = taskContext
	}

	msg := core.NewRequest(r.identity, agentID, payload)
	reply, err := r.transport.Request(ctx, msg, r.timeout)
	if err != nil {
		r.logger.Warn("agent request failed", "agent_id", agentID, "error", err)
		return core.ExecutionResult{
			Status:   core.ExecutionFailed,
			Message:  err.Error(),
			Metadata: map[string]any{"agent_id": agentID},
		}, nil
	}

	return foldReply(agentID, reply), nil
}

// foldReply maps an agent's response payload onto an execution result using
// the shared payload convention (status / result / error).
func foldReply(agentID string, reply *core.Message) core.ExecutionResult {
	exec := core.ExecutionResult{
		Metadata: map[string]any{"agent_id": agentID},
	}

	status, _ := reply.Payload["status"].(string)
	if status == "error" {
		exec.Status = core.ExecutionFailed
		if msg, ok := reply.Payload["error"].(string); ok {
			exec.Message = msg
		} else {
			exec.Message = "agent reported an error"
		}
		return exec
	}

	exec.Status = core.ExecutionSuccess
	if result, ok := reply.Payload["result"]; ok {
		exec.Result = result
	} else {
		exec.Result = reply.Payload
	}
	return exec
}
