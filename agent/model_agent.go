package agent

import (
	"context"
	"fmt"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
)

// ModelAgent is a local agent that answers task requests with a single model
// completion. Its Handle method matches the transport handler shape, so the
// same agent can sit behind the in-process transport or a remote one.
//
// Incoming payload convention (shared with the team coordinator):
//
//	task     string          the work to perform (required)
//	context  map[string]any  optional task state, available to the instruction
//
// Outgoing payload:
//
//	status   "success" | "error"
//	result   completion text (success)
//	error    message (error)
type ModelAgent struct {
	identity    core.AgentIdentity
	mdl         model.Model
	instruction Instruction
	logger      logging.Logger
}

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	// Instruction is resolved against the request's task state and sent as
	// system instructions. Empty by default.
	Instruction Instruction

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewModelAgent creates a model-backed agent with the given identity.
func NewModelAgent(identity core.AgentIdentity, mdl model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelAgent{
		identity:    identity,
		mdl:         mdl,
		instruction: opts.Instruction,
		logger:      opts.Logger,
	}
}

// Identity returns the agent's identity record for registry registration.
func (a *ModelAgent) Identity() core.AgentIdentity { return a.identity }

// Handle serves one incoming message. Requests produce a correlated response
// message; notifications are absorbed after logging.
func (a *ModelAgent) Handle(ctx context.Context, msg core.Message) (*core.Message, error) {
	if msg.Type == core.MessageNotification {
		a.logger.Debug("notification received", "agent_id", a.identity.ID, "sender", msg.Sender.ID)
		return nil, nil
	}

	task, _ := msg.Payload["task"].(string)
	if task == "" {
		return a.errorReply(msg, "payload has no task"), nil
	}

	state := taskState(msg)

	text, err := a.complete(ctx, task, state)
	if err != nil {
		a.logger.Warn("model call failed", "agent_id", a.identity.ID, "error", err)
		return a.errorReply(msg, err.Error()), nil
	}

	reply := core.NewResponse(a.identity, msg.Sender.ID, msg.ID, map[string]any{
		"status": "success",
		"result": text,
	})
	return &reply, nil
}

// Execute runs a task directly, without a transport round trip.
func (a *ModelAgent) Execute(ctx context.Context, task string, taskContext map[string]any) (string, error) {
	return a.complete(ctx, task, taskContext)
}

func (a *ModelAgent) complete(ctx context.Context, task string, state map[string]any) (string, error) {
	instructions, err := a.instruction.Resolve(state)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	prompt := task
	if prev, ok := state["previous_result"]; ok {
		prompt = fmt.Sprintf("%s\n\nResult of the previous stage:\n%v", task, prev)
	}

	return model.Complete(ctx, a.mdl, model.Request{
		Instructions: instructions,
		Prompt:       prompt,
	})
}

func (a *ModelAgent) errorReply(msg core.Message, text string) *core.Message {
	reply := core.NewResponse(a.identity, msg.Sender.ID, msg.ID, map[string]any{
		"status": "error",
		"error":  text,
	})
	return &reply
}

// taskState merges the payload's context map with chain-threading fields so
// instructions and prompts can see both.
func taskState(msg core.Message) map[string]any {
	state := make(map[string]any)
	if tc, ok := msg.Payload["context"].(map[string]any); ok {
		for k, v := range tc {
			state[k] = v
		}
	}
	for _, key := range []string{"previous_result", "step_number", "total_steps", "pipeline_stage", "total_stages", "team_members"} {
		if v, ok := msg.Payload[key]; ok {
			state[key] = v
		}
	}
	return state
}
