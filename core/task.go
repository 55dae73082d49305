package core

import "time"

// PlanStatus tracks the lifecycle of a plan as the pipeline progresses.
type PlanStatus string

// Plan lifecycle states.
const (
	PlanDraft     PlanStatus = "draft"
	PlanApproved  PlanStatus = "approved"
	PlanExecuting PlanStatus = "executing"
	PlanCompleted PlanStatus = "completed"
	PlanFailed    PlanStatus = "failed"
)

// StepStatus tracks the lifecycle of a single step inside a plan.
type StepStatus string

// Step lifecycle states.
const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// StepType categorizes a step. The pipeline treats all types uniformly today;
// the field exists so planners can annotate steps for downstream consumers.
type StepType string

// Known step types.
const (
	StepAction   StepType = "action"
	StepAnalysis StepType = "analysis"
	StepDecision StepType = "decision"
)

// Step is one unit of work inside a Plan. Steps are mutated in place as the
// pipeline routes, executes and validates them; they are never removed from a
// plan mid-run.
type Step struct {
	Description string   `json:"description"`
	Type        StepType `json:"type"`
	Status      StepStatus
	Result      any    `json:"result,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Plan is an ordered sequence of steps derived from a task description. It is
// owned exclusively by the one pipeline run processing it; Version increments
// on re-plan.
type Plan struct {
	ID        string     `json:"id"`
	Goal      string     `json:"goal"`
	Steps     []Step     `json:"steps"`
	Status    PlanStatus `json:"status"`
	Current   int        `json:"current_step_index"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewPlan creates a draft plan with a generated id.
func NewPlan(goal string, steps []Step) *Plan {
	for i := range steps {
		if steps[i].Status == "" {
			steps[i].Status = StepPending
		}
		if steps[i].Type == "" {
			steps[i].Type = StepAction
		}
	}
	return &Plan{
		ID:        NewID(),
		Goal:      goal,
		Steps:     steps,
		Status:    PlanDraft,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
}

// TaskRequest bundles the inputs to one pipeline execution.
type TaskRequest struct {
	Description  string         `json:"description"`
	TaskType     string         `json:"task_type"`
	Requirements map[string]any `json:"requirements,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
	AgentID      string         `json:"agent_id,omitempty"`
	// MaxRetries is the per-step retry budget. Zero or negative defers to
	// the pipeline's default.
	MaxRetries int `json:"max_retries"`
}

// TaskStatus is the terminal classification of one pipeline run.
type TaskStatus string

// Task result states. Success means every step validated; Partial means the
// plan ran to the end but at least one step failed validation; Failed means a
// stage fault terminated the run early.
const (
	TaskSuccess TaskStatus = "success"
	TaskPartial TaskStatus = "partial"
	TaskFailed  TaskStatus = "failed"
)

// ExecutionStatus classifies the outcome of a single execution attempt.
type ExecutionStatus string

// Execution attempt outcomes.
const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// ExecutionResult is the normalized outcome of one execution path (tool,
// agent, team or direct inference).
type ExecutionResult struct {
	Status   ExecutionStatus `json:"status"`
	Result   any             `json:"result,omitempty"`
	Message  string          `json:"message,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// StepResult records the final outcome of one step after validation and any
// reflection-guided retries.
type StepResult struct {
	Index       int               `json:"index"`
	Description string            `json:"description"`
	Routing     RoutingDecision   `json:"routing"`
	Execution   ExecutionResult   `json:"execution"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	Reflection  *ReflectionResult `json:"reflection,omitempty"`
	Attempts    int               `json:"attempts"`
	Retried     bool              `json:"retried"`
	RetryFailed bool              `json:"retry_failed"`
}

// TaskResult is the structured outcome returned to the caller of a pipeline
// run. It always carries enough detail (per-step status, validation issues,
// reflection analysis) to explain why the run ended the way it did.
type TaskResult struct {
	RunID        string        `json:"run_id"`
	Status       TaskStatus    `json:"status"`
	Steps        []StepResult  `json:"steps"`
	StageReached string        `json:"stage_reached"`
	Error        string        `json:"error,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}
