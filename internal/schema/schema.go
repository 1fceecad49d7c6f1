// Package schema holds the raw HCL block shapes for capability manifests,
// rulebooks and permission policies, before translation into the
// format-agnostic config model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Parameters represents the content of a 'parameters' block. The body is
// kept raw so expressions can be inspected for dependencies and evaluated
// lazily at dispatch time.
type Parameters struct {
	Body hcl.Body `hcl:",remain"`
}

// ActionBlock represents an `action "<id>"` block inside a rule.
type ActionBlock struct {
	ID            string         `hcl:"id,label"`
	Capability    string         `hcl:"capability"`
	EstimatedTime string         `hcl:"estimated_time"`
	Priority      int            `hcl:"priority,optional"`
	After         []string       `hcl:"after,optional"`
	Parameters    *Parameters    `hcl:"parameters,block"`
	Fallback      *FallbackBlock `hcl:"fallback,block"`
}

// FallbackBlock represents the single optional `fallback` block of an action.
type FallbackBlock struct {
	Capability    string      `hcl:"capability"`
	EstimatedTime string      `hcl:"estimated_time"`
	Priority      int         `hcl:"priority,optional"`
	Parameters    *Parameters `hcl:"parameters,block"`
}

// RuleBlock represents a `rule "<category>"` block from a rulebook file.
type RuleBlock struct {
	Category    string         `hcl:"category,label"`
	Description string         `hcl:"description,optional"`
	Actions     []*ActionBlock `hcl:"action,block"`
}

// InputDefinition declares a single input of a capability manifest.
type InputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	Optional    bool           `hcl:"optional,optional"`
}

// OutputDefinition declares a single output of a capability manifest.
type OutputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
}

// CapabilityBlock represents a `capability "<TYPE>"` manifest block.
type CapabilityBlock struct {
	Type        string              `hcl:"type,label"`
	Description string              `hcl:"description,optional"`
	Handler     string              `hcl:"handler"`
	Inputs      []*InputDefinition  `hcl:"input,block"`
	Outputs     []*OutputDefinition `hcl:"output,block"`
}

// PermissionBlock represents a `permission "<TYPE>"` policy block.
type PermissionBlock struct {
	Type     string `hcl:"type,label"`
	Decision string `hcl:"decision"`
}

// FileRoot is used to decode all possible top-level blocks from any file.
// Manifests, rulebooks and policies may be mixed freely across files.
type FileRoot struct {
	Capabilities []*CapabilityBlock `hcl:"capability,block"`
	Rules        []*RuleBlock       `hcl:"rule,block"`
	Permissions  []*PermissionBlock `hcl:"permission,block"`
	Remain       hcl.Body           `hcl:",remain"`
}
