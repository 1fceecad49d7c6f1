// Package decompose maps classified intents onto unordered sets of atomic
// actions plus a declared dependency relation, driven by HCL rulebooks.
package decompose

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/config"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/ctyconv"
	"github.com/vk/intentflow/internal/intent"
)

// Error means an intent category has no registered rule. It is always
// reported to the caller; no plan is created.
type Error struct {
	Category string
}

func (e *Error) Error() string {
	return fmt.Sprintf("no decomposition rule registered for intent category '%s'", e.Category)
}

// Result is the decomposer's output: the unordered action set, the declared
// dependency relation and the per-action fallback substitutes. Graph
// validation is deliberately left to plan.Build so that a bad dependency is
// reported as the structural error it is.
type Result struct {
	Actions      []*action.Action
	Dependencies map[string][]string
	Fallbacks    map[string]*action.Action
}

// Decomposer turns intents into action sets using the loaded rulebook.
type Decomposer struct {
	rules map[string]*config.Rule
}

// New creates a decomposer over the rulebook carried by the config model.
func New(model *config.Model) *Decomposer {
	return &Decomposer{rules: model.Rules}
}

// Decompose maps one intent (or each of its sub-intents) through its rule.
// Actions from different sub-intents are merged into a single set; they stay
// independent unless a rule's expressions say otherwise, which is the
// primary source of exploitable parallelism for multi-clause utterances.
func (d *Decomposer) Decompose(ctx context.Context, in *intent.Intent) (*Result, error) {
	logger := ctxlog.FromContext(ctx)

	leaves := in.Leaves()
	res := &Result{
		Dependencies: make(map[string][]string),
		Fallbacks:    make(map[string]*action.Action),
	}

	for scope, leaf := range leaves {
		rule, ok := d.rules[leaf.Category]
		if !ok {
			return nil, &Error{Category: leaf.Category}
		}
		logger.Debug("Decomposing intent.", "category", leaf.Category, "scope", scope, "actions", len(rule.Actions))

		intentVal, err := intentValue(&leaf)
		if err != nil {
			return nil, fmt.Errorf("intent '%s': %w", leaf.Category, err)
		}

		// Local ids within a rule instance; globalized when several
		// sub-intents are merged into one plan.
		localIDs := make(map[string]struct{}, len(rule.Actions))
		for _, tpl := range rule.Actions {
			localIDs[tpl.ID] = struct{}{}
		}
		globalize := func(localID string) string {
			if len(leaves) == 1 {
				return localID
			}
			return fmt.Sprintf("%s@%d", localID, scope)
		}

		for _, tpl := range rule.Actions {
			id := globalize(tpl.ID)
			a := action.New(id, action.Type(tpl.Capability), tpl.Parameters, tpl.EstimatedTime, tpl.Priority)
			a.LocalID = tpl.ID
			a.Scope = scope
			a.Intent = intentVal
			res.Actions = append(res.Actions, a)

			deps := make(map[string]struct{})
			for _, after := range tpl.After {
				deps[globalize(after)] = struct{}{}
			}
			for _, ref := range referencedActions(tpl.Parameters) {
				// Unknown local references are passed through so that
				// plan.Build reports them as dangling, not silently dropped.
				deps[globalize(ref)] = struct{}{}
			}
			if len(deps) > 0 {
				res.Dependencies[id] = sortedKeys(deps)
			}

			if tpl.Fallback != nil {
				fb := action.New(id+".fallback", action.Type(tpl.Fallback.Capability), tpl.Fallback.Parameters, tpl.Fallback.EstimatedTime, tpl.Fallback.Priority)
				fb.LocalID = tpl.ID
				fb.Scope = scope
				fb.Intent = intentVal
				fb.IsFallback = true
				fb.ReplacesID = id
				res.Fallbacks[id] = fb
			}
		}
	}

	logger.Debug("Decomposition complete.", "action_count", len(res.Actions), "fallback_count", len(res.Fallbacks))
	return res, nil
}

// referencedActions extracts the local action ids referenced by parameter
// expressions of the form `action.<id>...`. A reference is exactly what
// declares a data dependency: one action's output required as another's
// input.
func referencedActions(params map[string]hcl.Expression) []string {
	set := make(map[string]struct{})
	for _, expr := range params {
		for _, traversal := range expr.Variables() {
			if len(traversal) < 2 || traversal.RootName() != "action" {
				continue
			}
			if attr, ok := traversal[1].(hcl.TraverseAttr); ok {
				set[attr.Name] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// intentValue renders a sub-intent as the cty object exposed to parameter
// expressions as `intent`.
func intentValue(leaf *intent.Intent) (cty.Value, error) {
	params := cty.EmptyObjectVal
	if len(leaf.Parameters) > 0 {
		var err error
		params, err = ctyconv.ToCtyValue(leaf.Parameters)
		if err != nil {
			return cty.NilVal, fmt.Errorf("cannot convert intent parameters: %w", err)
		}
	}
	return cty.ObjectVal(map[string]cty.Value{
		"category":   cty.StringVal(leaf.Category),
		"confidence": cty.NumberFloatVal(leaf.Confidence),
		"params":     params,
	}), nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
