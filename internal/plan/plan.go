package plan

import (
	"time"

	"github.com/google/uuid"

	"github.com/vk/intentflow/internal/action"
)

// Plan is one intent's validated dependency graph plus its registered
// fallbacks. A plan is created once per intent, owned exclusively by one
// planning+execution cycle, and never reused. It is read-only during
// execution except for fallback substitution, which the fallback
// coordinator serializes.
type Plan struct {
	// ID identifies the plan in audit records and logs.
	ID    string
	Graph *Graph
	// Fallbacks maps an action id to its single registered substitute.
	Fallbacks map[string]*action.Action
	// EstimatedTime is the critical-path estimate, not the total work.
	EstimatedTime time.Duration
}

// New wraps a validated graph into a plan, assigning it a fresh id and
// computing the critical-path estimate.
func New(g *Graph, fallbacks map[string]*action.Action) *Plan {
	if fallbacks == nil {
		fallbacks = make(map[string]*action.Action)
	}
	return &Plan{
		ID:            uuid.NewString(),
		Graph:         g,
		Fallbacks:     fallbacks,
		EstimatedTime: CriticalPath(g),
	}
}
