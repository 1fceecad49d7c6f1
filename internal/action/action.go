// Package action defines the atomic unit of work the engine plans and
// executes, together with its lifecycle state machine.
package action

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Type is the enumerated capability tag of an action. The engine never
// inspects what a capability does; the tag only selects the registered
// handler.
type Type string

// The capability tags known to the core rulebooks and modules. The set is
// open: any tag with a registered capability manifest is executable.
const (
	RetrieveMemory   Type = "RETRIEVE_MEMORY"
	CallAPI          Type = "CALL_API"
	ComputeMath      Type = "COMPUTE_MATH"
	ExecuteCode      Type = "EXECUTE_CODE"
	ControlDevice    Type = "CONTROL_DEVICE"
	ControlBrowser   Type = "CONTROL_BROWSER"
	GenerateResponse Type = "GENERATE_RESPONSE"
	Speak            Type = "SPEAK"
)

// Status is the execution state of an action within a single plan.
type Status int32

const (
	// Pending indicates the action is waiting for its dependencies to complete.
	Pending Status = iota
	// Ready indicates all dependencies have succeeded and the action may be dispatched.
	Ready
	// Running indicates the action is currently executing on a worker.
	Running
	// Succeeded is the successful terminal state, possibly reached via a fallback.
	Succeeded
	// Failed is the permanent-failure terminal state, set only after fallback exhaustion.
	Failed
	// Skipped is the terminal state of actions never dispatched: an upstream
	// dependency failed permanently, or the plan deadline expired first.
	Skipped
)

// Terminal reports whether s is one of the three end states.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Action is a single atomic unit of work. Actions are created by the
// decomposer in Pending state and are never reused across plans.
type Action struct {
	// ID is unique and stable within one plan.
	ID string
	// Type selects the registered capability that will execute this action.
	Type Type

	// Params holds the raw named inputs as HCL attribute expressions. They
	// stay opaque to the engine and are only evaluated at dispatch time,
	// against the outputs of already-completed actions.
	Params map[string]hcl.Expression

	// EstimatedTime is a positive duration estimate. It seeds the per-action
	// timeout and the scheduling tie-break; it does not affect correctness.
	EstimatedTime time.Duration
	// Priority orders ready actions competing for limited concurrency.
	// Higher runs first.
	Priority int

	// Output is the capability's result, valid once the action succeeded.
	Output cty.Value
	// Err is the terminal error, valid once the action failed or was skipped.
	Err error

	// LocalID is the id the action carries inside its rule; Scope is the
	// ordinal of the sub-intent that produced it. Together they let the
	// executor resolve `action.<id>` parameter references within the right
	// rule instance even when several sub-intents share a rule.
	LocalID string
	Scope   int
	// Intent is the producing sub-intent rendered as a cty object, exposed
	// to parameter expressions as the `intent` variable.
	Intent cty.Value

	// IsFallback marks a substitute injected by the fallback coordinator.
	// ReplacesID names the failed action it stands in for.
	IsFallback bool
	ReplacesID string

	state atomic.Int32
}

// New creates an action in Pending state.
func New(id string, typ Type, params map[string]hcl.Expression, estimate time.Duration, priority int) *Action {
	a := &Action{
		ID:            id,
		Type:          typ,
		Params:        params,
		EstimatedTime: estimate,
		Priority:      priority,
	}
	a.state.Store(int32(Pending))
	return a
}

// Status atomically returns the current lifecycle state.
func (a *Action) Status() Status {
	return Status(a.state.Load())
}

// Transition attempts to move the action to the given state. It returns the
// state it moved from and whether the transition was applied. Terminal states
// are sticky: once an action is Succeeded, Failed or Skipped no further
// transition is possible, which makes the terminal outcome race-free even if
// a canceled worker and the stage barrier both try to finalize it.
func (a *Action) Transition(to Status) (from Status, ok bool) {
	for {
		cur := Status(a.state.Load())
		if cur.Terminal() {
			return cur, false
		}
		if a.state.CompareAndSwap(int32(cur), int32(to)) {
			return cur, true
		}
	}
}
