// Package result defines per-plan execution outcomes and the pure
// aggregation that computes overall status from per-action results.
package result

import (
	"encoding/json"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/ctyconv"
)

// PlanStatus is the overall outcome of one plan.
type PlanStatus string

const (
	// StatusSuccess means every action reached succeeded, directly or via
	// its fallback.
	StatusSuccess PlanStatus = "success"
	// StatusPartial means at least one action succeeded and at least one
	// ended in a permanent non-success (failed or skipped). It is an
	// expected terminal status, not an error condition.
	StatusPartial PlanStatus = "partial"
	// StatusFailure means no action succeeded.
	StatusFailure PlanStatus = "failure"
)

// FailureKind classifies the action-level error taxonomy.
type FailureKind string

const (
	KindNone             FailureKind = ""
	KindPermissionDenied FailureKind = "permission_denied"
	KindTimeout          FailureKind = "timeout"
	KindCapabilityError  FailureKind = "capability_error"
	KindCancelled        FailureKind = "cancelled"
	KindSkipped          FailureKind = "skipped"
)

// Outcome is the terminal record of one action.
type Outcome struct {
	Status action.Status
	Kind   FailureKind
	// Output is set when Status is Succeeded.
	Output cty.Value
	// Error is the rendered terminal error, empty on success.
	Error string
	// Duration is the wall-clock execution time; zero for actions that
	// never started.
	Duration time.Duration
	// ViaFallback is true when the recorded outcome belongs to the
	// substitute attempted after the original action failed.
	ViaFallback bool
}

// MarshalJSON renders the outcome with the cty output converted to plain Go
// values, so results can be printed or shipped as JSON.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out, err := ctyconv.FromCtyValue(o.Output)
	if err != nil {
		out = o.Output.GoString()
	}
	return json.Marshal(struct {
		Status      string      `json:"status"`
		Kind        FailureKind `json:"kind,omitempty"`
		Output      any         `json:"output,omitempty"`
		Error       string      `json:"error,omitempty"`
		DurationMS  int64       `json:"duration_ms"`
		ViaFallback bool        `json:"via_fallback,omitempty"`
	}{
		Status:      o.Status.String(),
		Kind:        o.Kind,
		Output:      out,
		Error:       o.Error,
		DurationMS:  o.Duration.Milliseconds(),
		ViaFallback: o.ViaFallback,
	})
}

// ExecutionResult is the aggregated outcome of one plan.
type ExecutionResult struct {
	PlanID    string             `json:"plan_id"`
	Status    PlanStatus         `json:"status"`
	PerAction map[string]Outcome `json:"per_action"`
	TotalTime time.Duration      `json:"total_time"`
}

// Aggregate combines per-action outcomes into the plan result. It is a pure
// function: success iff everything succeeded, failure iff nothing did,
// partial otherwise. Skipped actions count as permanent non-successes.
func Aggregate(planID string, outcomes map[string]Outcome, total time.Duration) *ExecutionResult {
	succeeded, unsucceeded := 0, 0
	for _, o := range outcomes {
		if o.Status == action.Succeeded {
			succeeded++
		} else {
			unsucceeded++
		}
	}

	status := StatusPartial
	switch {
	case unsucceeded == 0:
		status = StatusSuccess
	case succeeded == 0:
		status = StatusFailure
	}

	perAction := make(map[string]Outcome, len(outcomes))
	for id, o := range outcomes {
		perAction[id] = o
	}

	return &ExecutionResult{
		PlanID:    planID,
		Status:    status,
		PerAction: perAction,
		TotalTime: total,
	}
}
