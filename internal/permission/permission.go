// Package permission is the pre-execution gate consulted once per action
// immediately before it starts running. The policy engine behind it is
// external; this package only carries decisions across the boundary and
// provides the HCL-policy implementation used by the CLI.
package permission

import (
	"context"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/config"
)

// Decision is the gate's verdict for one action.
type Decision int

const (
	// Allowed lets the action run.
	Allowed Decision = iota
	// Denied is a permanent failure for the action, eligible for fallback.
	Denied
	// NeedsConfirmation suspends the action pending an out-of-band user
	// decision, with a bounded wait before timing out as denied.
	NeedsConfirmation
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case NeedsConfirmation:
		return "needs_confirmation"
	default:
		return "unknown"
	}
}

// Gate checks whether an action may run.
type Gate interface {
	Check(ctx context.Context, a *action.Action) Decision
}

// Confirmer resolves a NeedsConfirmation decision out of band. The executor
// bounds the wait; implementations should return promptly once ctx is done.
type Confirmer interface {
	Confirm(ctx context.Context, a *action.Action) (bool, error)
}

// PolicyGate decides from the `permission` blocks of the loaded config.
// Action types without a configured policy are allowed.
type PolicyGate struct {
	decisions map[action.Type]Decision
}

// NewPolicyGate builds a gate from the config model.
func NewPolicyGate(model *config.Model) *PolicyGate {
	g := &PolicyGate{decisions: make(map[action.Type]Decision)}
	for typ, policy := range model.Permissions {
		switch policy.Decision {
		case "deny":
			g.decisions[action.Type(typ)] = Denied
		case "confirm":
			g.decisions[action.Type(typ)] = NeedsConfirmation
		default:
			g.decisions[action.Type(typ)] = Allowed
		}
	}
	return g
}

// Check implements Gate.
func (g *PolicyGate) Check(_ context.Context, a *action.Action) Decision {
	if d, ok := g.decisions[a.Type]; ok {
		return d
	}
	return Allowed
}

// StaticConfirmer answers every confirmation request with a fixed verdict.
// The CLI wires it from the --auto-confirm flag; an interactive front end
// would supply its own Confirmer.
type StaticConfirmer bool

// Confirm implements Confirmer.
func (s StaticConfirmer) Confirm(_ context.Context, _ *action.Action) (bool, error) {
	return bool(s), nil
}
