// Package fallback substitutes registered fallback actions for failed
// originals. Substitution is the only mutation a plan sees during execution,
// and it is serialized here.
package fallback

import (
	"context"
	"sync"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/plan"
)

// Coordinator hands out fallback substitutes for one plan. Only one
// substitution is in flight at a time, so two concurrent failures can never
// race to rewrite the same plan structure.
type Coordinator struct {
	mu        sync.Mutex
	plan      *plan.Plan
	attempted map[string]struct{}
}

// NewCoordinator creates a coordinator bound to a single plan.
func NewCoordinator(p *plan.Plan) *Coordinator {
	return &Coordinator{
		plan:      p,
		attempted: make(map[string]struct{}),
	}
}

// HandleFailure returns the substitute for the failed action, or nil when
// the branch is permanently failed. Fallback depth is exactly one: a failed
// fallback is never retried, and each registered fallback is handed out at
// most once. The substitute inherits the original's position in the graph,
// so downstream readiness keys on the original's id.
func (c *Coordinator) HandleFailure(ctx context.Context, failed *action.Action) *action.Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := ctxlog.FromContext(ctx)

	if failed.IsFallback {
		logger.Debug("Fallback itself failed; branch is permanently failed.", "action_id", failed.ID, "replaces", failed.ReplacesID)
		return nil
	}
	if _, done := c.attempted[failed.ID]; done {
		return nil
	}
	fb, ok := c.plan.Fallbacks[failed.ID]
	if !ok {
		return nil
	}
	c.attempted[failed.ID] = struct{}{}

	logger.Info("Substituting fallback for failed action.", "failed_id", failed.ID, "fallback_id", fb.ID)
	return fb
}
