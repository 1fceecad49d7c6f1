package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/audit"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/permission"
	"github.com/vk/intentflow/internal/result"
)

// runAction carries one action from ready to a terminal state: concurrency
// slot, permission gate, bounded invocation, outcome recording.
func (e *Executor) runAction(planCtx context.Context, a *action.Action) {
	logger := ctxlog.FromContext(planCtx).With("action_id", a.ID, "type", string(a.Type))

	if err := e.sem.Acquire(planCtx, 1); err != nil {
		e.finalize(planCtx, a, action.Failed, result.KindCancelled, fmt.Errorf("cancelled while waiting for a worker: %w", err), 0)
		return
	}
	defer e.sem.Release(1)

	if planCtx.Err() != nil {
		e.finalize(planCtx, a, action.Failed, result.KindCancelled, planCtx.Err(), 0)
		return
	}

	e.transition(planCtx, a, action.Ready)

	// Permission gate sits exactly on the ready -> running edge.
	switch e.gate.Check(planCtx, a) {
	case permission.Denied:
		e.finalize(planCtx, a, action.Failed, result.KindPermissionDenied, fmt.Errorf("permission denied for action type '%s'", a.Type), 0)
		return
	case permission.NeedsConfirmation:
		if kind, err := e.awaitConfirmation(planCtx, a); kind != result.KindNone {
			e.finalize(planCtx, a, action.Failed, kind, err, 0)
			return
		}
	}

	logger.Info("▶️ Starting action.")
	e.transition(planCtx, a, action.Running)

	timeout := e.actionTimeout(a)
	actx, cancel := context.WithTimeout(planCtx, timeout)
	defer cancel()

	start := time.Now()
	output, err := e.invoke(actx, a)
	duration := time.Since(start)

	if err != nil {
		kind := e.classifyFailure(planCtx, actx, err)
		logger.Warn("Action failed.", "kind", string(kind), "duration", duration, "error", err)
		e.finalize(planCtx, a, action.Failed, kind, err, duration)
		return
	}

	logger.Info("✅ Action succeeded.", "duration", duration)
	e.succeed(planCtx, a, output, duration)
}

// actionTimeout bounds one invocation by the estimate-derived budget; the
// remaining plan deadline applies automatically because the action context
// descends from the plan context.
func (e *Executor) actionTimeout(a *action.Action) time.Duration {
	return time.Duration(float64(a.EstimatedTime) * e.opts.SafetyFactor)
}

// classifyFailure maps an invocation error onto the failure taxonomy. A
// plan-wide cancellation always wins over an action-local timeout.
func (e *Executor) classifyFailure(planCtx, actx context.Context, err error) result.FailureKind {
	if planCtx.Err() != nil {
		return result.KindCancelled
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return result.KindTimeout
	}
	return result.KindCapabilityError
}

// awaitConfirmation suspends the action until the confirmer answers, the
// bounded wait expires (denied), or the plan deadline hits first
// (cancelled; the deadline wins the race).
func (e *Executor) awaitConfirmation(planCtx context.Context, a *action.Action) (result.FailureKind, error) {
	confirmCtx, cancel := context.WithTimeout(planCtx, e.opts.ConfirmTimeout)
	defer cancel()

	type verdict struct {
		ok  bool
		err error
	}
	ch := make(chan verdict, 1)
	go func() {
		ok, err := e.confirmer.Confirm(confirmCtx, a)
		ch <- verdict{ok: ok, err: err}
	}()

	select {
	case <-confirmCtx.Done():
		if planCtx.Err() != nil {
			return result.KindCancelled, fmt.Errorf("plan cancelled while awaiting confirmation: %w", planCtx.Err())
		}
		return result.KindPermissionDenied, fmt.Errorf("confirmation not received within %s, treating as denied", e.opts.ConfirmTimeout)
	case v := <-ch:
		if v.err != nil {
			return result.KindPermissionDenied, fmt.Errorf("confirmation failed: %w", v.err)
		}
		if !v.ok {
			return result.KindPermissionDenied, errors.New("user declined the action")
		}
		return result.KindNone, nil
	}
}

// transition applies a non-terminal state change and emits the audit record.
func (e *Executor) transition(ctx context.Context, a *action.Action, to action.Status) bool {
	from, ok := a.Transition(to)
	if ok {
		e.sink.Record(ctx, audit.Record{
			PlanID:    e.plan.ID,
			ActionID:  a.ID,
			From:      from,
			To:        to,
			Timestamp: time.Now(),
		})
	}
	return ok
}

// finalize moves an action into a failed or skipped terminal state and
// records its outcome. Terminal states are sticky, so a late worker and the
// stage barrier cannot double-report.
func (e *Executor) finalize(ctx context.Context, a *action.Action, to action.Status, kind result.FailureKind, err error, duration time.Duration) {
	from, ok := a.Transition(to)
	if !ok {
		return
	}
	a.Err = err

	e.sink.Record(ctx, audit.Record{
		PlanID:    e.plan.ID,
		ActionID:  a.ID,
		From:      from,
		To:        to,
		Timestamp: time.Now(),
		Err:       err,
	})

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	e.mu.Lock()
	e.outcomes[outcomeID(a)] = result.Outcome{
		Status:      to,
		Kind:        kind,
		Error:       msg,
		Duration:    duration,
		ViaFallback: a.IsFallback,
	}
	e.mu.Unlock()
}

// succeed finalizes a successful action and publishes its output for
// downstream parameter references under the rule-local id.
func (e *Executor) succeed(ctx context.Context, a *action.Action, output cty.Value, duration time.Duration) {
	from, ok := a.Transition(action.Succeeded)
	if !ok {
		return
	}
	a.Output = output

	e.sink.Record(ctx, audit.Record{
		PlanID:    e.plan.ID,
		ActionID:  a.ID,
		From:      from,
		To:        action.Succeeded,
		Timestamp: time.Now(),
	})

	e.mu.Lock()
	e.outcomes[outcomeID(a)] = result.Outcome{
		Status:      action.Succeeded,
		Output:      output,
		Duration:    duration,
		ViaFallback: a.IsFallback,
	}
	if _, ok := e.outputs[a.Scope]; !ok {
		e.outputs[a.Scope] = make(map[string]cty.Value)
	}
	e.outputs[a.Scope][a.LocalID] = output
	e.mu.Unlock()
}
