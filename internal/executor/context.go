package executor

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/config"
)

// invoke resolves the handler, evaluates the action's parameters against the
// outputs visible in its scope and calls the capability.
func (e *Executor) invoke(ctx context.Context, a *action.Action) (cty.Value, error) {
	handler, def, err := e.registry.Resolve(a.Type)
	if err != nil {
		return cty.NilVal, err
	}

	var input any
	if handler.NewInput != nil {
		input = handler.NewInput()
		if err := decodeInput(input, a.Params, def, e.buildEvalContext(a)); err != nil {
			return cty.NilVal, fmt.Errorf("decoding parameters for action '%s': %w", a.ID, err)
		}
	} else if len(a.Params) > 0 {
		return cty.NilVal, fmt.Errorf("action '%s' passes parameters, but capability '%s' declares none", a.ID, a.Type)
	}

	return handler.Fn(ctx, input)
}

// buildEvalContext assembles the HCL evaluation context for one action's
// parameters. The `intent` variable carries the producing sub-intent and the
// `action` variable exposes the outputs of completed actions in the same
// rule instance as `action.<id>.output`.
func (e *Executor) buildEvalContext(a *action.Action) *hcl.EvalContext {
	intentVal := a.Intent
	if intentVal == cty.NilVal {
		intentVal = cty.EmptyObjectVal
	}

	e.mu.Lock()
	scoped := e.outputs[a.Scope]
	actionVals := make(map[string]cty.Value, len(scoped))
	for localID, out := range scoped {
		actionVals[localID] = cty.ObjectVal(map[string]cty.Value{
			"output": out,
		})
	}
	e.mu.Unlock()

	vars := map[string]cty.Value{
		"intent": intentVal,
	}
	if len(actionVals) > 0 {
		vars["action"] = cty.ObjectVal(actionVals)
	}

	return &hcl.EvalContext{Variables: vars}
}

// decodeInput evaluates the action's parameter expressions and populates the
// handler's input struct. The manifest is the contract: undeclared
// parameters are rejected, declared inputs fall back to their default, and
// missing non-optional inputs are an error.
func decodeInput(target any, params map[string]hcl.Expression, def *config.CapabilityDefinition, evalCtx *hcl.EvalContext) error {
	values := make(map[string]cty.Value, len(params))
	for name, expr := range params {
		inputDef, ok := def.Inputs[name]
		if !ok {
			return fmt.Errorf("parameter '%s' is not declared by capability '%s'", name, def.Type)
		}
		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("evaluating parameter '%s': %s", name, diags.Error())
		}
		if !inputDef.Type.Equals(cty.DynamicPseudoType) {
			converted, err := convert.Convert(val, inputDef.Type)
			if err != nil {
				return fmt.Errorf("parameter '%s': %w", name, err)
			}
			val = converted
		}
		values[name] = val
	}

	for name, inputDef := range def.Inputs {
		if _, ok := values[name]; ok {
			continue
		}
		if inputDef.Default != nil {
			values[name] = *inputDef.Default
			continue
		}
		if !inputDef.Optional {
			return fmt.Errorf("required parameter '%s' of capability '%s' is not set", name, def.Type)
		}
	}

	return populateStruct(target, values)
}

var ctyValueType = reflect.TypeOf(cty.Value{})

// populateStruct assigns evaluated values onto `hcl`-tagged fields. Fields
// typed cty.Value receive the value as-is; everything else goes through
// gocty conversion.
func populateStruct(target any, values map[string]cty.Value) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("input target must be a pointer to struct, got %T", target)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tagName := strings.Split(field.Tag.Get("hcl"), ",")[0]
		if tagName == "" || tagName == "-" {
			continue
		}
		val, ok := values[tagName]
		if !ok {
			continue
		}

		fv := rv.Field(i)
		if field.Type == ctyValueType {
			fv.Set(reflect.ValueOf(val))
			continue
		}
		if err := gocty.FromCtyValue(val, fv.Addr().Interface()); err != nil {
			return fmt.Errorf("input '%s': %w", tagName, err)
		}
	}
	return nil
}
