package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of everything the
// engine reads from configuration: capability manifests, rulebook rules and
// permission policies.
type Model struct {
	Capabilities map[string]*CapabilityDefinition
	Rules        map[string]*Rule
	Permissions  map[string]*PermissionPolicy
}

// NewModel returns an empty, fully initialized model.
func NewModel() *Model {
	return &Model{
		Capabilities: make(map[string]*CapabilityDefinition),
		Rules:        make(map[string]*Rule),
		Permissions:  make(map[string]*PermissionPolicy),
	}
}

// CapabilityDefinition is the manifest for one capability type. It binds an
// action type tag to a registered Go handler and declares the handler's
// input/output contract so the registry can verify parity at startup.
type CapabilityDefinition struct {
	Type        string
	Description string
	// Handler is the name under which the Go function was registered.
	Handler string
	Inputs  map[string]*InputDefinition
	Outputs map[string]*OutputDefinition
}

// InputDefinition declares a single named input of a capability.
type InputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Optional    bool
}

// OutputDefinition declares a single named output of a capability.
type OutputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
}

// Rule is the decomposition recipe for one intent category.
type Rule struct {
	Category    string
	Description string
	// Actions preserves file order; ids must be unique within the rule.
	Actions []*ActionTemplate
}

// ActionTemplate is the format-agnostic representation of one `action`
// block inside a rule. Parameters stay as raw expressions so the engine can
// inspect them for implicit dependencies and defer evaluation until the
// action is dispatched.
type ActionTemplate struct {
	ID            string
	Capability    string
	Parameters    map[string]hcl.Expression
	EstimatedTime time.Duration
	Priority      int
	// After lists explicit dependencies by action id, in addition to the
	// implicit ones inferred from `action.<id>` references in Parameters.
	After []string
	// Fallback is the single optional substitute attempted if this action
	// fails permanently.
	Fallback *FallbackTemplate
}

// FallbackTemplate describes the substitute action for a failed original.
// It inherits the original's position in the dependency graph, so it
// declares no dependencies of its own.
type FallbackTemplate struct {
	Capability    string
	Parameters    map[string]hcl.Expression
	EstimatedTime time.Duration
	Priority      int
}

// PermissionPolicy is the pre-execution gate decision configured for one
// capability type. Types without a policy default to allow.
type PermissionPolicy struct {
	Type     string
	Decision string // "allow", "deny" or "confirm"
}
