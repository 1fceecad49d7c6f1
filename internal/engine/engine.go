// Package engine ties the pipeline together: decomposition, graph
// validation, staging and execution, as one plan-and-execute cycle per
// intent.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/intentflow/internal/audit"
	"github.com/vk/intentflow/internal/config"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/decompose"
	"github.com/vk/intentflow/internal/executor"
	"github.com/vk/intentflow/internal/intent"
	"github.com/vk/intentflow/internal/permission"
	"github.com/vk/intentflow/internal/plan"
	"github.com/vk/intentflow/internal/registry"
	"github.com/vk/intentflow/internal/result"
)

// Engine is the long-lived orchestrator. It holds the loaded rulebook and
// registry; each call to PlanAndExecute builds a fresh single-use plan.
type Engine struct {
	decomposer *decompose.Decomposer
	registry   *registry.Registry
	gate       permission.Gate
	confirmer  permission.Confirmer
	sink       audit.Sink
	opts       executor.Options
}

// New assembles an engine from its collaborators. A nil gate falls back to
// the model's permission policies, a nil confirmer declines everything and a
// nil sink logs audit records through slog.
func New(model *config.Model, reg *registry.Registry, gate permission.Gate, confirmer permission.Confirmer, sink audit.Sink, opts executor.Options) *Engine {
	if gate == nil {
		gate = permission.NewPolicyGate(model)
	}
	if confirmer == nil {
		confirmer = permission.StaticConfirmer(false)
	}
	if sink == nil {
		sink = &audit.SlogSink{}
	}
	return &Engine{
		decomposer: decompose.New(model),
		registry:   reg,
		gate:       gate,
		confirmer:  confirmer,
		sink:       sink,
		opts:       opts,
	}
}

// PlanAndExecute runs the full cycle for one intent. Structural problems
// (an unknown category, a dangling reference, a cycle) are returned as
// errors before anything runs; runtime failures are reported inside the
// execution result, never as an error.
func (e *Engine) PlanAndExecute(ctx context.Context, in *intent.Intent, deadline time.Duration) (*result.ExecutionResult, error) {
	logger := ctxlog.FromContext(ctx)

	res, err := e.decomposer.Decompose(ctx, in)
	if err != nil {
		return nil, err
	}

	graph, err := plan.Build(res.Actions, res.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("plan validation: %w", err)
	}

	stages, err := plan.Resolve(graph)
	if err != nil {
		return nil, fmt.Errorf("plan staging: %w", err)
	}

	p := plan.New(graph, res.Fallbacks)
	logger.Info("Plan ready.", "plan_id", p.ID, "actions", graph.Len(), "stages", len(stages), "critical_path", p.EstimatedTime)
	if p.EstimatedTime > deadline {
		logger.Warn("Critical-path estimate exceeds the plan deadline; expect partial results.",
			"estimate", p.EstimatedTime, "deadline", deadline)
	}

	exec := executor.New(p, stages, e.registry, e.gate, e.confirmer, e.sink, e.opts)
	return exec.Execute(ctx, deadline), nil
}
