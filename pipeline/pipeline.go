// Package pipeline implements the decision pipeline: plan a task, then drive
// each step through routing, execution, validation and reflection-guided
// retry while advancing the workflow state machine. A pipeline run never
// propagates an unhandled fault to its caller; every run ends in a
// structured success, partial or failed result.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/workflow"
)

// Pipeline coordinates one task execution end to end. All collaborators
// except the planner are optional: missing executors degrade to failed
// attempts, a missing router degrades every step to direct inference.
type Pipeline struct {
	planner     core.Planner
	router      core.Router
	tools       core.ToolRunner
	agents      core.AgentRunner
	teams       core.TeamRunner
	mdl         model.Model
	critic      *Critic
	reflector   *Reflector
	plans       core.PlanStore
	runs        core.RunStore
	sink        core.EventSink
	stepTimeout time.Duration
	maxRetries  int
	logger      logging.Logger
}

// Options configures a Pipeline.
type Options struct {
	// Router picks executors per step. Nil routes every step to direct
	// inference.
	Router core.Router

	// Tools executes tool-routed steps.
	Tools core.ToolRunner

	// Agents executes agent-routed steps.
	Agents core.AgentRunner

	// Teams executes team-routed steps.
	Teams core.TeamRunner

	// Model backs the direct inference fallback and, by default, the
	// reflector's analysis prompts.
	Model model.Model

	// Critic overrides the default deterministic critic.
	Critic *Critic

	// Reflector overrides the default reflector.
	Reflector *Reflector

	// Plans persists the plan between stages. Persistence failures are
	// logged and never fail the run.
	Plans core.PlanStore

	// Runs persists the final workflow snapshot of each run. Persistence
	// failures are logged and never fail the run.
	Runs core.RunStore

	// Memory backs the default reflector's precedent lookups.
	Memory core.MemoryStore

	// Sink receives workflow transition events.
	Sink core.EventSink

	// StepTimeout bounds each execution attempt. Defaults to 60s.
	StepTimeout time.Duration

	// DefaultMaxRetries is the per-step retry budget applied to requests
	// that do not set their own. Defaults to 2.
	DefaultMaxRetries int

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewPipeline creates a pipeline. The planner is required; everything else
// is optional.
func NewPipeline(planner core.Planner, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		StepTimeout:       60 * time.Second,
		DefaultMaxRetries: 2,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Critic == nil {
		opts.Critic = NewCritic(func(o *CriticOptions) { o.Logger = opts.Logger })
	}
	if opts.Reflector == nil {
		opts.Reflector = NewReflector(func(o *ReflectorOptions) {
			o.Model = opts.Model
			o.Memory = opts.Memory
			o.Logger = opts.Logger
		})
	}

	return &Pipeline{
		planner:     planner,
		router:      opts.Router,
		tools:       opts.Tools,
		agents:      opts.Agents,
		teams:       opts.Teams,
		mdl:         opts.Model,
		critic:      opts.Critic,
		reflector:   opts.Reflector,
		plans:       opts.Plans,
		runs:        opts.Runs,
		sink:        opts.Sink,
		stepTimeout: opts.StepTimeout,
		maxRetries:  opts.DefaultMaxRetries,
		logger:      opts.Logger,
	}
}

// ExecuteTask runs one task through the full pipeline. It always returns a
// structured result: success when every step validated, partial when the plan
// ran to the end with failures, failed when a stage fault terminated the run
// early. Panics are recovered and surface as a failed result.
func (p *Pipeline) ExecuteTask(runCtx *core.RunContext, req core.TaskRequest) (result core.TaskResult) {
	start := time.Now()
	logger := runCtx.Logger

	m := workflow.NewMachine(runCtx, func(o *workflow.Options) { o.Sink = p.sink })
	m.Initialize(req.Description, req.AgentID, "api")

	result.RunID = runCtx.RunID
	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline fault", "run_id", runCtx.RunID, "panic", r)
			m.MarkFailed(fmt.Sprintf("internal fault: %v", r), nil)
			result.Status = core.TaskFailed
			result.Error = fmt.Sprintf("internal fault: %v", r)
			result.StageReached = m.CurrentState().Stage()
		}
		result.Elapsed = time.Since(start)
		p.persistRun(runCtx, m.Snapshot())
	}()

	m.TransitionTo(workflow.StateParsing, "parsing task request", nil)
	if strings.TrimSpace(req.Description) == "" {
		m.MarkFailed("empty task description", nil)
		result.Status = core.TaskFailed
		result.Error = "empty task description"
		result.StageReached = "parsing"
		return result
	}

	m.TransitionTo(workflow.StatePlanning, "generating plan", nil)
	plan, err := p.planner.GeneratePlan(runCtx.Context, req.Description, req.Context)
	if err != nil {
		logger.Error("planning failed", "run_id", runCtx.RunID, "error", err)
		m.MarkFailed("planning failed: "+err.Error(), nil)
		result.Status = core.TaskFailed
		result.Error = "planning failed: " + err.Error()
		result.StageReached = "planning"
		return result
	}

	plan.Status = core.PlanApproved
	p.persistPlan(runCtx, plan)

	m.TransitionTo(workflow.StateExecuting, "executing plan", map[string]any{
		"plan_id": plan.ID,
		"steps":   len(plan.Steps),
	})
	plan.Status = core.PlanExecuting

	allValid := true
	for i := range plan.Steps {
		stepResult := p.executeStep(runCtx, m, req, plan, i)
		result.Steps = append(result.Steps, stepResult)
		if stepResult.Validation == nil || !stepResult.Validation.IsValid {
			allValid = false
		}
	}

	if allValid {
		plan.Status = core.PlanCompleted
		result.Status = core.TaskSuccess
	} else {
		plan.Status = core.PlanFailed
		result.Status = core.TaskPartial
	}
	p.persistPlan(runCtx, plan)

	m.MarkCompleted(map[string]any{"status": string(result.Status), "steps": len(result.Steps)})
	result.StageReached = "result"

	if tl, ok := logger.(*logging.TaskMeshLogger); ok {
		tl.LogStageExecution("execution", len(result.Steps), time.Since(start), result.Status != core.TaskFailed, nil)
	}

	return result
}

// persistPlan stores the plan between stages. Failures are advisory.
func (p *Pipeline) persistPlan(runCtx *core.RunContext, plan *core.Plan) {
	if p.plans == nil {
		return
	}
	if err := p.plans.PutPlan(runCtx.Context, plan); err != nil {
		runCtx.Logger.Warn("plan persistence failed", "plan_id", plan.ID, "error", err)
	}
}

// persistRun stores the final workflow snapshot. Failures are advisory.
func (p *Pipeline) persistRun(runCtx *core.RunContext, snapshot core.RunSnapshot) {
	if p.runs == nil {
		return
	}
	if err := p.runs.PutRun(runCtx.Context, snapshot); err != nil {
		runCtx.Logger.Warn("run persistence failed", "run_id", snapshot.ID, "error", err)
	}
}

// executeStep drives one step through route, execute, validate and the
// reflection-guided retry loop. With max_retries = N the step executes at
// most N+1 times; a failed retry reverts to the first attempt's result.
func (p *Pipeline) executeStep(runCtx *core.RunContext, m *workflow.Machine, req core.TaskRequest, plan *core.Plan, index int) core.StepResult {
	step := &plan.Steps[index]
	plan.Current = index
	step.Status = core.StepExecuting

	decision := p.route(runCtx, step.Description, req)
	sr := core.StepResult{
		Index:       index,
		Description: step.Description,
		Routing:     decision,
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = p.maxRetries
	}

	description := step.Description
	var firstExec core.ExecutionResult
	var firstVal core.ValidationResult

	for attempt := 0; ; attempt++ {
		sr.Attempts = attempt + 1

		exec := p.executeAttempt(runCtx, decision, description, req)
		validation := p.critic.Validate(runCtx.Context, req.Description, exec, req.Requirements)
		if attempt == 0 {
			firstExec, firstVal = exec, validation
		}
		sr.Execution = exec
		sr.Validation = &validation

		if validation.IsValid {
			if attempt > 0 {
				sr.Retried = true
				if sr.Reflection != nil {
					p.reflector.ReportOutcome(runCtx.Context, step.Description, *sr.Reflection, true)
				}
			}
			break
		}

		if attempt >= maxRetries {
			if attempt > 0 {
				// The retry did not help: keep the original failed result.
				sr.RetryFailed = true
				sr.Execution = firstExec
				sr.Validation = &firstVal
				if sr.Reflection != nil {
					p.reflector.ReportOutcome(runCtx.Context, step.Description, *sr.Reflection, false)
				}
			}
			break
		}

		m.TransitionTo(workflow.StateRetrying, fmt.Sprintf("step %d failed, reflecting", index), nil)
		reflection := p.reflector.Reflect(runCtx.Context, description, failureText(exec, validation), &validation)
		sr.Reflection = &reflection
		if reflection.SuggestedFix != nil {
			description = description + "\nApply this fix: " + reflection.SuggestedFix.Description
		}
		m.TransitionTo(workflow.StateExecuting, fmt.Sprintf("retrying step %d", index), map[string]any{
			"attempt": attempt + 2,
		})
	}

	p.finishStep(step, sr)
	return sr
}

// finishStep writes the final outcome back onto the plan's step.
func (p *Pipeline) finishStep(step *core.Step, sr core.StepResult) {
	step.Result = sr.Execution.Result
	step.Output = resultText(sr.Execution.Result)
	if sr.Validation != nil && sr.Validation.IsValid {
		step.Status = core.StepCompleted
		step.Error = ""
		return
	}
	step.Status = core.StepFailed
	step.Error = failureSummary(sr)
}

func failureSummary(sr core.StepResult) string {
	if sr.Execution.Message != "" {
		return sr.Execution.Message
	}
	if sr.Validation != nil && len(sr.Validation.Issues) > 0 {
		return strings.Join(sr.Validation.Issues, "; ")
	}
	return "validation failed"
}

func failureText(exec core.ExecutionResult, validation core.ValidationResult) string {
	if exec.Status == core.ExecutionFailed && exec.Message != "" {
		return exec.Message
	}
	if len(validation.Issues) > 0 {
		return strings.Join(validation.Issues, "; ")
	}
	return "result failed validation with score " + fmt.Sprintf("%.2f", validation.Score)
}

// route asks the router for a decision; failure degrades to unrouted.
func (p *Pipeline) route(runCtx *core.RunContext, stepDescription string, req core.TaskRequest) core.RoutingDecision {
	if p.router == nil {
		return core.Unrouted("no router configured")
	}

	decision, err := p.router.RouteTask(runCtx.Context, stepDescription, req.TaskType, req.Requirements, req.Context)
	if err != nil {
		runCtx.Logger.Warn("routing failed, falling back to direct inference", "step", stepDescription, "error", err)
		return core.Unrouted("routing failed: " + err.Error())
	}
	return decision
}

// executeAttempt runs one execution attempt over the routed path. Path
// priority is tool > agent > team > direct inference, encoded in the routing
// decision's kind. Errors come back as failed results, never as faults.
func (p *Pipeline) executeAttempt(runCtx *core.RunContext, decision core.RoutingDecision, description string, req core.TaskRequest) core.ExecutionResult {
	ctx, cancel := context.WithTimeout(runCtx.Context, p.stepTimeout)
	defer cancel()

	switch decision.Kind {
	case core.RouteTool:
		if p.tools == nil {
			return failedResult("no tool runner configured")
		}
		exec, err := p.tools.Run(ctx, decision.Tool, map[string]any{"input": description}, req.Context)
		if err != nil {
			return failedResult(fmt.Sprintf("tool %s: %v", decision.Tool, err))
		}
		return exec

	case core.RouteAgent:
		if p.agents == nil {
			return failedResult("no agent runner configured")
		}
		exec, err := p.agents.Run(ctx, decision.Agent, description, req.Context)
		if err != nil {
			return failedResult(fmt.Sprintf("agent %s: %v", decision.Agent, err))
		}
		return exec

	case core.RouteTeam:
		if p.teams == nil {
			return failedResult("no team runner configured")
		}
		exec, err := p.teams.Run(ctx, decision.Team, description, req.Context)
		if err != nil {
			return failedResult(fmt.Sprintf("team %s: %v", decision.Team, err))
		}
		return exec

	default:
		if p.mdl == nil {
			return failedResult("no model configured for direct inference")
		}
		prompt := decision.Prompt
		if prompt == "" {
			prompt = description
		}
		text, err := model.Complete(ctx, p.mdl, model.Request{Prompt: prompt})
		if err != nil {
			return failedResult("direct inference: " + err.Error())
		}
		return core.ExecutionResult{
			Status:   core.ExecutionSuccess,
			Result:   text,
			Metadata: map[string]any{"path": "direct_inference"},
		}
	}
}

func failedResult(message string) core.ExecutionResult {
	return core.ExecutionResult{Status: core.ExecutionFailed, Message: message}
}
