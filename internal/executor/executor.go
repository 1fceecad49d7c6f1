// Package executor runs a resolved plan stage by stage: all actions within a
// stage dispatch concurrently on a bounded pool, each bounded by its own
// timeout and by the plan-wide deadline, with failures recovered through the
// fallback coordinator before they are allowed to touch dependents.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/semaphore"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/audit"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/fallback"
	"github.com/vk/intentflow/internal/permission"
	"github.com/vk/intentflow/internal/plan"
	"github.com/vk/intentflow/internal/registry"
	"github.com/vk/intentflow/internal/result"
)

// Options tune one executor instance.
type Options struct {
	// MaxConcurrent bounds how many actions run at once across a stage.
	MaxConcurrent int
	// SafetyFactor multiplies an action's time estimate to form its
	// timeout. The effective bound is min(estimate × factor, remaining
	// plan deadline).
	SafetyFactor float64
	// ConfirmTimeout bounds the wait for an out-of-band confirmation;
	// expiry counts as denied.
	ConfirmTimeout time.Duration
	// GracePeriod is how long the executor waits for in-flight actions to
	// acknowledge cancellation before abandoning their results.
	GracePeriod time.Duration
}

// DefaultOptions returns the options used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		MaxConcurrent:  8,
		SafetyFactor:   1.5,
		ConfirmTimeout: 30 * time.Second,
		GracePeriod:    2 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = def.MaxConcurrent
	}
	if o.SafetyFactor <= 0 {
		o.SafetyFactor = def.SafetyFactor
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = def.ConfirmTimeout
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = def.GracePeriod
	}
	return o
}

// Executor drives one plan through its stages. It is single-use: create one
// per plan-and-execute cycle.
type Executor struct {
	plan      *plan.Plan
	stages    []plan.Stage
	registry  *registry.Registry
	gate      permission.Gate
	confirmer permission.Confirmer
	sink      audit.Sink
	coord     *fallback.Coordinator
	opts      Options
	sem       *semaphore.Weighted

	mu       sync.Mutex
	outcomes map[string]result.Outcome
	// outputs holds succeeded outputs per sub-intent scope, keyed by the
	// rule-local action id, for `action.<id>.output` parameter references.
	outputs map[int]map[string]cty.Value
}

// New creates an executor for one resolved plan.
func New(p *plan.Plan, stages []plan.Stage, reg *registry.Registry, gate permission.Gate, confirmer permission.Confirmer, sink audit.Sink, opts Options) *Executor {
	opts = opts.withDefaults()
	return &Executor{
		plan:      p,
		stages:    stages,
		registry:  reg,
		gate:      gate,
		confirmer: confirmer,
		sink:      sink,
		coord:     fallback.NewCoordinator(p),
		opts:      opts,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		outcomes:  make(map[string]result.Outcome),
		outputs:   make(map[int]map[string]cty.Value),
	}
}

// Execute runs the plan to completion or to the given wall-clock deadline
// and returns the aggregated result. Cancellation of ctx cancels the plan.
func (e *Executor) Execute(ctx context.Context, deadline time.Duration) *result.ExecutionResult {
	logger := ctxlog.FromContext(ctx).With("plan_id", e.plan.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	planCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	logger.Info("🚀 Starting plan execution.", "stages", len(e.stages), "actions", e.plan.Graph.Len(), "deadline", deadline)

	// Stages are executed strictly in resolver order. The slice may grow
	// mid-run: a successful fallback substitution inserts a stage.
	for i := 0; i < len(e.stages); i++ {
		if planCtx.Err() != nil {
			break
		}

		runnable := e.pendingActions(e.stages[i])
		if len(runnable) == 0 {
			continue
		}
		logger.Debug("Dispatching stage.", "stage", i, "runnable", len(runnable))

		e.runStage(planCtx, runnable)

		// Post-stage recovery: failed actions consult the coordinator.
		// Substitutes form a new stage injected immediately after this
		// one, so dependents (always in later stages) observe the
		// substitute's outcome, not the original's.
		var substitutes plan.Stage
		for _, a := range runnable {
			if a.Status() != action.Failed {
				continue
			}
			if e.kindOf(a) == result.KindCancelled {
				// Plan-wide cancellation is not a recoverable failure.
				continue
			}
			if fb := e.coord.HandleFailure(planCtx, a); fb != nil {
				substitutes = append(substitutes, fb)
			} else {
				e.skipDependents(planCtx, a)
			}
		}
		if len(substitutes) > 0 {
			rest := make([]plan.Stage, 0, len(e.stages)-i-1)
			rest = append(rest, e.stages[i+1:]...)
			e.stages = append(append(e.stages[:i+1:i+1], substitutes), rest...)
		}
	}

	// Whatever never reached a terminal state was starved by the deadline
	// or an external cancel.
	e.skipRemaining(planCtx)

	total := time.Since(start)
	res := result.Aggregate(e.plan.ID, e.snapshotOutcomes(), total)
	logger.Info("🏁 Plan execution finished.", "status", string(res.Status), "total", total)
	return res
}

// runStage dispatches every runnable action of one stage concurrently and
// blocks until the stage drains. If the plan deadline expires mid-stage, it
// waits up to the grace period for workers to acknowledge cancellation, then
// abandons the stragglers as cancelled.
func (e *Executor) runStage(planCtx context.Context, runnable []*action.Action) {
	var wg sync.WaitGroup
	for _, a := range runnable {
		wg.Add(1)
		go func(a *action.Action) {
			defer wg.Done()
			e.runAction(planCtx, a)
		}(a)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-planCtx.Done():
	}

	// Cooperative cancellation: the per-action contexts descend from
	// planCtx, so workers are already unwinding.
	select {
	case <-done:
	case <-time.After(e.opts.GracePeriod):
		for _, a := range runnable {
			if !a.Status().Terminal() {
				e.finalize(planCtx, a, action.Failed, result.KindCancelled,
					fmt.Errorf("abandoned after cancellation grace period: %w", planCtx.Err()), 0)
			}
		}
	}
}

// pendingActions filters a stage down to actions still eligible to run;
// skipped branches fall out here.
func (e *Executor) pendingActions(stage plan.Stage) []*action.Action {
	var out []*action.Action
	for _, a := range stage {
		if a.Status() == action.Pending {
			out = append(out, a)
		}
	}
	return out
}

// skipDependents marks all and only the transitive dependents of a
// permanently failed action as skipped. Independent branches are untouched.
func (e *Executor) skipDependents(ctx context.Context, failed *action.Action) {
	origID := failed.ID
	if failed.IsFallback {
		origID = failed.ReplacesID
	}
	for _, depID := range e.plan.Graph.TransitiveDependents(origID) {
		dep := e.plan.Graph.Actions[depID]
		if dep.Status().Terminal() {
			continue
		}
		e.finalize(ctx, dep, action.Skipped, result.KindSkipped,
			fmt.Errorf("skipped due to upstream failure of '%s'", origID), 0)
	}
}

// skipRemaining finalizes every non-terminal action after the stage loop
// ends, covering deadline expiry and external cancellation.
func (e *Executor) skipRemaining(planCtx context.Context) {
	cause := planCtx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	for _, stage := range e.stages {
		for _, a := range stage {
			if a.Status().Terminal() {
				continue
			}
			e.finalize(planCtx, a, action.Skipped, result.KindCancelled,
				fmt.Errorf("plan ended before action started: %w", cause), 0)
		}
	}
}

func (e *Executor) snapshotOutcomes() map[string]result.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]result.Outcome, len(e.outcomes))
	for id, o := range e.outcomes {
		out[id] = o
	}
	return out
}

// kindOf returns the recorded failure kind for an action, if any.
func (e *Executor) kindOf(a *action.Action) result.FailureKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outcomes[outcomeID(a)].Kind
}

// outcomeID keys outcomes by the original action id: a fallback's outcome
// replaces the failed original's contribution to the plan status.
func outcomeID(a *action.Action) string {
	if a.IsFallback {
		return a.ReplacesID
	}
	return a.ID
}
