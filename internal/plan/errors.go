package plan

import (
	"fmt"
	"strings"
)

// GraphErrorKind classifies structural planning defects.
type GraphErrorKind int

const (
	// DanglingReference means a dependency names an action id that does not
	// exist in the action set.
	DanglingReference GraphErrorKind = iota + 1
	// CycleDetected means the dependency relation is not acyclic.
	CycleDetected
	// DuplicateAction means two actions in the set share an id.
	DuplicateAction
)

func (k GraphErrorKind) String() string {
	switch k {
	case DanglingReference:
		return "dangling reference"
	case CycleDetected:
		return "cycle detected"
	case DuplicateAction:
		return "duplicate action"
	default:
		return "unknown graph error"
	}
}

// GraphError is a structural defect in a dependency graph. It is fatal for
// the whole plan and always surfaces before any execution begins.
type GraphError struct {
	Kind GraphErrorKind

	// ActionID and Ref are set for DanglingReference: ActionID declared a
	// dependency on the unknown id Ref. For DuplicateAction only ActionID is
	// set, to the colliding id.
	ActionID string
	Ref      string

	// Cycle is set for CycleDetected: the offending cycle as an ordered list
	// of action ids, starting and ending implicitly at Cycle[0].
	Cycle []string
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case DanglingReference:
		return fmt.Sprintf("dangling reference: action '%s' depends on unknown action '%s'", e.ActionID, e.Ref)
	case CycleDetected:
		return fmt.Sprintf("cycle detected: %s", strings.Join(e.Cycle, " -> "))
	case DuplicateAction:
		return fmt.Sprintf("duplicate action id '%s'", e.ActionID)
	default:
		return e.Kind.String()
	}
}
