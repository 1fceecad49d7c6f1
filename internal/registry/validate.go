package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/intentflow/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between capability
// manifests and the registered Go handlers. It checks both the presence of
// declared inputs and the compatibility of their types, so that a manifest
// drifting from its module is caught at startup rather than mid-plan.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for actionType, def := range r.Definitions {
		handler, ok := r.Handlers[def.Handler]
		if !ok {
			errs = append(errs, fmt.Sprintf("capability '%s': manifest names handler '%s', which is not registered", actionType, def.Handler))
			continue
		}

		if handler.InputType == nil {
			if len(def.Inputs) > 0 {
				errs = append(errs, fmt.Sprintf("capability '%s': manifest declares inputs, but Go handler has no input struct", actionType))
			}
			continue
		}

		declared := make(map[string]struct{}, len(def.Inputs))
		for name := range def.Inputs {
			declared[name] = struct{}{}
		}

		goInputs := make(map[string]reflect.StructField)
		inputType := handler.InputType
		for i := 0; i < inputType.NumField(); i++ {
			field := inputType.Field(i)
			if !field.IsExported() {
				continue
			}
			tagName := strings.Split(field.Tag.Get("hcl"), ",")[0]
			if tagName != "" && tagName != "-" {
				goInputs[tagName] = field
			}
		}

		// Presence in both directions.
		for name := range goInputs {
			if _, ok := declared[name]; !ok {
				errs = append(errs, fmt.Sprintf("capability '%s': Go struct has field for input '%s' which is not declared in manifest", actionType, name))
			}
		}
		for name := range declared {
			if _, ok := goInputs[name]; !ok {
				errs = append(errs, fmt.Sprintf("capability '%s': manifest declares input '%s' which is not found in Go struct", actionType, name))
			}
		}

		// Type compatibility for inputs present on both sides.
		for name, inputDef := range def.Inputs {
			goField, ok := goInputs[name]
			if !ok {
				continue
			}

			if inputDef.Type.Equals(cty.DynamicPseudoType) {
				logger.Warn("Manifest input uses 'type = any', which disables static type checking.", "capability", string(actionType), "input", name)
				continue
			}

			goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
			if err != nil {
				errs = append(errs, fmt.Sprintf("capability '%s', input '%s': could not imply cty type from Go field type %s: %v", actionType, name, goField.Type, err))
				continue
			}

			if !inputDef.Type.Equals(goFieldType) {
				errs = append(errs, fmt.Sprintf("capability '%s', input '%s': type mismatch: manifest requires '%s' but Go field '%s' provides '%s'",
					actionType, name, inputDef.Type.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
