package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// ErrToolNotFound is returned when a routing decision names a tool that was
// never registered.
var ErrToolNotFound = errors.New("tool not found")

// Runner keeps a registry of named tools and executes them on behalf of the
// decision pipeline. It implements core.ToolRunner.
//
// Execution results are normalized: a tool error never propagates as a Go
// error to the pipeline, it becomes a failed ExecutionResult so the critic
// and reflector can reason about it. Only a missing tool is a hard error.
type Runner struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Logger logging.Logger
}

// NewRunner creates an empty tool runner.
func NewRunner(optFns ...func(o *RunnerOptions)) *Runner {
	opts := RunnerOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		tools:  make(map[string]Tool),
		logger: opts.Logger,
	}
}

// Register adds a tool under its own name. Registering a second tool with the
// same name replaces the first.
func (r *Runner) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a registered tool by name.
func (r *Runner) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in unspecified order.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Run executes the named tool with the given input arguments.
//
// taskContext is merged into the arguments under the "context" key when the
// tool's schema declares it, otherwise it is dropped; tools that need run
// scoped data declare it explicitly.
func (r *Runner) Run(ctx context.Context, toolRef string, input map[string]any, taskContext map[string]any) (core.ExecutionResult, error) {
	t, ok := r.Get(toolRef)
	if !ok {
		return core.ExecutionResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, toolRef)
	}

	args := make(map[string]any, len(input)+1)
	for k, v := range input {
		args[k] = v
	}
	if len(taskContext) > 0 && schemaDeclares(t.Parameters(), "context") {
		args["context"] = taskContext
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		r.logger.Warn("tool call failed", "tool", toolRef, "error", err)
		return core.ExecutionResult{
			Status:   core.ExecutionFailed,
			Message:  err.Error(),
			Metadata: map[string]any{"tool": toolRef},
		}, nil
	}

	return core.ExecutionResult{
		Status:   core.ExecutionSuccess,
		Result:   result,
		Metadata: map[string]any{"tool": toolRef},
	}, nil
}

func schemaDeclares(schema map[string]any, field string) bool {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = props[field]
	return ok
}
