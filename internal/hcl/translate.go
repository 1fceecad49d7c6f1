package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/config"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/schema"
)

// translateCapability converts a raw capability block into the model form,
// resolving type expressions into concrete cty types.
func (l *Loader) translateCapability(ctx context.Context, block *schema.CapabilityBlock) (*config.CapabilityDefinition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Translating capability manifest.", "type", block.Type)

	def := &config.CapabilityDefinition{
		Type:        block.Type,
		Description: block.Description,
		Handler:     block.Handler,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
	}
	if def.Handler == "" {
		return nil, fmt.Errorf("capability %q: handler must not be empty", block.Type)
	}

	for _, in := range block.Inputs {
		ty, err := translateTypeExpr(in.Type)
		if err != nil {
			return nil, fmt.Errorf("capability %q, input %q: %w", block.Type, in.Name, err)
		}
		def.Inputs[in.Name] = &config.InputDefinition{
			Name:        in.Name,
			Type:        ty,
			Description: in.Description,
			Default:     in.Default,
			Optional:    in.Optional || in.Default != nil,
		}
	}
	for _, out := range block.Outputs {
		ty, err := translateTypeExpr(out.Type)
		if err != nil {
			return nil, fmt.Errorf("capability %q, output %q: %w", block.Type, out.Name, err)
		}
		def.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        ty,
			Description: out.Description,
		}
	}
	return def, nil
}

// translateRule converts a raw rule block, parsing durations and unpacking
// parameter bodies into per-attribute expressions.
func (l *Loader) translateRule(ctx context.Context, block *schema.RuleBlock) (*config.Rule, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Translating rule.", "category", block.Category, "actions", len(block.Actions))

	rule := &config.Rule{
		Category:    block.Category,
		Description: block.Description,
	}
	if len(block.Actions) == 0 {
		return nil, fmt.Errorf("rule %q declares no actions", block.Category)
	}

	seen := make(map[string]struct{})
	for _, ab := range block.Actions {
		if _, dup := seen[ab.ID]; dup {
			return nil, fmt.Errorf("rule %q: duplicate action id %q", block.Category, ab.ID)
		}
		seen[ab.ID] = struct{}{}

		estimate, err := parseEstimate(ab.EstimatedTime)
		if err != nil {
			return nil, fmt.Errorf("rule %q, action %q: %w", block.Category, ab.ID, err)
		}

		params, err := parametersToExpressions(ab.Parameters)
		if err != nil {
			return nil, fmt.Errorf("rule %q, action %q: %w", block.Category, ab.ID, err)
		}

		tpl := &config.ActionTemplate{
			ID:            ab.ID,
			Capability:    ab.Capability,
			Parameters:    params,
			EstimatedTime: estimate,
			Priority:      ab.Priority,
			After:         ab.After,
		}

		if ab.Fallback != nil {
			fbEstimate, err := parseEstimate(ab.Fallback.EstimatedTime)
			if err != nil {
				return nil, fmt.Errorf("rule %q, action %q fallback: %w", block.Category, ab.ID, err)
			}
			fbParams, err := parametersToExpressions(ab.Fallback.Parameters)
			if err != nil {
				return nil, fmt.Errorf("rule %q, action %q fallback: %w", block.Category, ab.ID, err)
			}
			tpl.Fallback = &config.FallbackTemplate{
				Capability:    ab.Fallback.Capability,
				Parameters:    fbParams,
				EstimatedTime: fbEstimate,
				Priority:      ab.Fallback.Priority,
			}
		}

		rule.Actions = append(rule.Actions, tpl)
	}
	return rule, nil
}

func translatePermission(block *schema.PermissionBlock) (*config.PermissionPolicy, error) {
	switch block.Decision {
	case "allow", "deny", "confirm":
	default:
		return nil, fmt.Errorf("permission %q: invalid decision %q (must be allow, deny or confirm)", block.Type, block.Decision)
	}
	return &config.PermissionPolicy{Type: block.Type, Decision: block.Decision}, nil
}

// translateTypeExpr resolves a manifest type expression like `string` or
// `list(number)` into a cty type constraint.
func translateTypeExpr(expr hcl.Expression) (cty.Type, error) {
	t, diags := typeexpr.TypeConstraint(expr)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("invalid type expression: %w", diags)
	}
	return t, nil
}

// parseEstimate parses an estimated_time attribute and enforces positivity.
func parseEstimate(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid estimated_time %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("estimated_time must be positive, got %q", raw)
	}
	return d, nil
}

// parametersToExpressions unpacks a parameters block into its named
// attribute expressions. A nil block means the action takes no inputs.
func parametersToExpressions(p *schema.Parameters) (map[string]hcl.Expression, error) {
	if p == nil {
		return map[string]hcl.Expression{}, nil
	}
	attrs, diags := p.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid parameters block: %w", diags)
	}
	exprs := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		exprs[name] = attr.Expr
	}
	return exprs, nil
}
