// Package taskmesh provides a high-level façade over the decision pipeline
// and its collaborators (planning, routing, tools, teams, persistence,
// events). Most applications interact with this package by:
//  1. Creating a TaskMesh via New() (optionally overriding default in-memory services)
//  2. Registering tools and agents
//  3. Submitting tasks with ExecuteTask
//
// All defaults are safe for local development and testing: mock model,
// in-process transport, in-memory stores. Production deployments supply a
// real model, the NATS transport and durable store implementations.
package taskmesh

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmesh/taskmesh/a2a"
	"github.com/taskmesh/taskmesh/agent"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/memory"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/pipeline"
	"github.com/taskmesh/taskmesh/registry"
	"github.com/taskmesh/taskmesh/store"
	"github.com/taskmesh/taskmesh/team"
	"github.com/taskmesh/taskmesh/tool"
)

// Options configures the TaskMesh instance.
type Options struct {
	// Model backs planning, routing and direct inference. Defaults to a
	// mock model suitable for tests.
	Model model.Model

	// Planner overrides the default model-backed planner.
	Planner core.Planner

	// Router overrides the default model-backed router.
	Router core.Router

	// Transport carries agent-to-agent messages. Defaults to the in-process
	// transport.
	Transport core.Transport

	// Registry resolves agent identities. Defaults to an in-memory registry.
	Registry core.Registry

	// Stores (default to one shared in-memory store if not provided).
	Plans core.PlanStore
	Teams core.TeamStore
	Runs  core.RunStore

	// Memory backs reflection precedent lookups.
	Memory core.MemoryStore

	// Sink receives workflow transition events. Nil disables mirroring.
	Sink core.EventSink

	// Identity is the sender identity used for coordination messages.
	Identity core.AgentIdentity

	// StepTimeout bounds each step execution attempt.
	StepTimeout time.Duration

	// RequestTimeout bounds each agent request/response exchange.
	RequestTimeout time.Duration

	// Logger defaults to NoOp logger if nil.
	Logger logging.Logger
}

// TaskMesh is the high-level façade aggregating the pipeline and its services.
type TaskMesh struct {
	opts        Options
	pipeline    *pipeline.Pipeline
	tools       *tool.Runner
	coordinator *team.Coordinator
	registry    core.Registry
	transport   core.Transport
	teams       core.TeamStore
	plans       core.PlanStore
	runs        core.RunStore
	logger      logging.Logger
}

// New creates a TaskMesh instance with optional overrides. Any unset service
// is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{
		Identity:       core.AgentIdentity{ID: "taskmesh", Name: "taskmesh"},
		StepTimeout:    60 * time.Second,
		RequestTimeout: 30 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model == nil {
		opts.Model = model.NewMockModel("taskmesh")
	}
	if opts.Plans == nil || opts.Teams == nil || opts.Runs == nil {
		shared := store.NewInMemoryStore()
		if opts.Plans == nil {
			opts.Plans = shared
		}
		if opts.Teams == nil {
			opts.Teams = shared
		}
		if opts.Runs == nil {
			opts.Runs = shared
		}
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore()
	}
	if opts.Registry == nil {
		opts.Registry = registry.NewInMemoryRegistry()
	}
	if opts.Transport == nil {
		opts.Transport = a2a.NewInProcTransport(func(o *a2a.InProcOptions) {
			o.Teams = opts.Teams
			o.Logger = opts.Logger
		})
	}
	if opts.Planner == nil {
		opts.Planner = pipeline.NewModelPlanner(opts.Model, func(o *pipeline.PlannerOptions) {
			o.Logger = opts.Logger
		})
	}
	if opts.Router == nil {
		opts.Router = pipeline.NewModelRouter(opts.Model, func(o *pipeline.RouterOptions) {
			o.Logger = opts.Logger
		})
	}

	coordinator := team.NewCoordinator(opts.Transport, opts.Registry, func(o *team.Options) {
		o.Identity = opts.Identity
		o.Timeout = opts.RequestTimeout
		o.Logger = opts.Logger
	})

	tools := tool.NewRunner(func(o *tool.RunnerOptions) { o.Logger = opts.Logger })
	tools.Register(tool.NewShareResultTool(coordinator, opts.Teams))

	agents := agent.NewRunner(opts.Transport, opts.Registry, func(o *agent.RunnerOptions) {
		o.Identity = opts.Identity
		o.Timeout = opts.RequestTimeout
		o.Logger = opts.Logger
	})

	p := pipeline.NewPipeline(opts.Planner, func(o *pipeline.Options) {
		o.Router = opts.Router
		o.Tools = tools
		o.Agents = agents
		o.Teams = team.NewRunner(coordinator, opts.Teams)
		o.Model = opts.Model
		o.Plans = opts.Plans
		o.Runs = opts.Runs
		o.Memory = opts.Memory
		o.Sink = opts.Sink
		o.StepTimeout = opts.StepTimeout
		o.Logger = opts.Logger
	})

	return &TaskMesh{
		opts:        opts,
		pipeline:    p,
		tools:       tools,
		coordinator: coordinator,
		registry:    opts.Registry,
		transport:   opts.Transport,
		teams:       opts.Teams,
		plans:       opts.Plans,
		runs:        opts.Runs,
		logger:      opts.Logger,
	}
}

// ExecuteTask runs one task through the decision pipeline and returns its
// structured result. The run never panics; faults surface as failed results.
func (tm *TaskMesh) ExecuteTask(ctx context.Context, req core.TaskRequest) core.TaskResult {
	runCtx := core.NewRunContext(ctx, tm.logger)
	return tm.pipeline.ExecuteTask(runCtx, req)
}

// RegisterTool adds a tool to the routing surface.
func (tm *TaskMesh) RegisterTool(t tool.Tool) { tm.tools.Register(t) }

// RegisterAgent wires a local model agent into the mesh: the registry learns
// its identity and the in-process transport routes messages to it. Returns an
// error when the configured transport or registry cannot register local
// agents.
func (tm *TaskMesh) RegisterAgent(a *agent.ModelAgent) error {
	reg, ok := tm.registry.(*registry.InMemoryRegistry)
	if !ok {
		return fmt.Errorf("registry does not support local registration")
	}
	transport, ok := tm.transport.(*a2a.InProcTransport)
	if !ok {
		return fmt.Errorf("transport does not support local handlers")
	}

	reg.Register(a.Identity())
	transport.Register(a.Identity().ID, a.Handle)
	return nil
}

// CreateTeam persists a new active team with the given members.
func (tm *TaskMesh) CreateTeam(ctx context.Context, name string, strategy core.CoordinationStrategy, members ...core.TeamMember) (*core.Team, error) {
	t := core.NewTeam(name, strategy, members...)
	t.Activate()
	if err := tm.teams.PutTeam(ctx, t); err != nil {
		return nil, fmt.Errorf("persist team: %w", err)
	}
	return t, nil
}

// GetTeam returns a stored team by id.
func (tm *TaskMesh) GetTeam(ctx context.Context, id string) (*core.Team, error) {
	return tm.teams.GetTeam(ctx, id)
}

// ListTeams returns all stored teams.
func (tm *TaskMesh) ListTeams(ctx context.Context) ([]*core.Team, error) {
	return tm.teams.ListTeams(ctx)
}

// DeleteTeam removes a stored team.
func (tm *TaskMesh) DeleteTeam(ctx context.Context, id string) error {
	return tm.teams.DeleteTeam(ctx, id)
}

// Coordinator exposes the team coordinator for direct task distribution.
func (tm *TaskMesh) Coordinator() *team.Coordinator { return tm.coordinator }

// GetPlan returns a persisted plan by id.
func (tm *TaskMesh) GetPlan(ctx context.Context, id string) (*core.Plan, error) {
	return tm.plans.GetPlan(ctx, id)
}

// GetRun returns the persisted workflow snapshot of a finished run.
func (tm *TaskMesh) GetRun(ctx context.Context, id string) (core.RunSnapshot, error) {
	return tm.runs.GetRun(ctx, id)
}
