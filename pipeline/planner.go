package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
)

// ModelPlanner implements core.Planner by asking a language model to
// decompose the task into JSON steps. Planning failure is fatal to a run, so
// model errors surface as errors; an unparseable completion degrades to a
// single-step plan instead.
type ModelPlanner struct {
	model  model.Model
	logger logging.Logger
}

// PlannerOptions configures a ModelPlanner.
type PlannerOptions struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewModelPlanner creates a planner over the given model.
func NewModelPlanner(m model.Model, optFns ...func(o *PlannerOptions)) *ModelPlanner {
	opts := PlannerOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelPlanner{model: m, logger: opts.Logger}
}

// GeneratePlan implements core.Planner.
func (p *ModelPlanner) GeneratePlan(ctx context.Context, taskDescription string, taskContext map[string]any) (*core.Plan, error) {
	prompt := fmt.Sprintf(`Decompose this task into an ordered list of concrete steps.

Task: %s
%s
Respond with JSON: {"steps": [{"description": "...", "type": "action|analysis|decision"}]}`,
		taskDescription, contextLines(taskContext))

	answer, err := model.Complete(ctx, p.model, model.Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	var steps []core.Step
	for _, s := range gjson.Get(answer, "steps").Array() {
		desc := s.Get("description").String()
		if desc == "" {
			continue
		}
		steps = append(steps, core.Step{
			Description: desc,
			Type:        core.StepType(s.Get("type").String()),
		})
	}

	if len(steps) == 0 {
		p.logger.Warn("plan completion not parseable, falling back to single step", "task", taskDescription)
		steps = []core.Step{{Description: taskDescription, Type: core.StepAction}}
	}

	return core.NewPlan(taskDescription, steps), nil
}

// ModelRouter implements core.Router by asking a language model to pick an
// executor for a step. Routing is best effort: any failure degrades to an
// unrouted decision and the pipeline falls back to direct inference.
type ModelRouter struct {
	model  model.Model
	logger logging.Logger
}

// RouterOptions configures a ModelRouter.
type RouterOptions struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewModelRouter creates a router over the given model.
func NewModelRouter(m model.Model, optFns ...func(o *RouterOptions)) *ModelRouter {
	opts := RouterOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelRouter{model: m, logger: opts.Logger}
}

// RouteTask implements core.Router.
func (r *ModelRouter) RouteTask(ctx context.Context, stepDescription, taskType string, requirements, taskContext map[string]any) (core.RoutingDecision, error) {
	prompt := fmt.Sprintf(`Pick the best executor for this task step.

Step: %s
Task type: %s
%s
Respond with JSON: {"target_type": "tool|agent|team|none", "target": "<name or id>", "reasoning": "..."}`,
		stepDescription, taskType, contextLines(taskContext))

	answer, err := model.Complete(ctx, r.model, model.Request{Prompt: prompt})
	if err != nil {
		r.logger.Warn("routing failed, falling back to direct inference", "step", stepDescription, "error", err)
		return core.Unrouted("routing failed: " + err.Error()), nil
	}

	target := gjson.Get(answer, "target").String()
	reasoning := gjson.Get(answer, "reasoning").String()

	switch gjson.Get(answer, "target_type").String() {
	case "tool":
		if target != "" {
			return core.RouteToTool(target, reasoning), nil
		}
	case "agent":
		if target != "" {
			return core.RouteToAgent(target, reasoning), nil
		}
	case "team":
		if target != "" {
			return core.RouteToTeam(target, reasoning), nil
		}
	}

	return core.Unrouted(reasoning), nil
}

func contextLines(taskContext map[string]any) string {
	if len(taskContext) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for k, v := range taskContext {
		fmt.Fprintf(&sb, "- %s: %v\n", k, v)
	}
	return sb.String()
}
