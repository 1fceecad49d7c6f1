// Package matheval provides the COMPUTE_MATH capability: deterministic
// evaluation of arithmetic expressions on an embedded JavaScript engine.
package matheval

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"regexp"

	"github.com/dop251/goja"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the COMPUTE_MATH capability.
type Input struct {
	Expression string `hcl:"expression"`
	Precision  int64  `hcl:"precision,optional"`
}

// allowed restricts expressions to arithmetic: numbers, operators, parens
// and Math.* calls. Anything else is rejected before it reaches the VM.
var allowed = regexp.MustCompile(`^[0-9+\-*/%^().,\s]*(Math\.[a-zA-Z]+[0-9+\-*/%^().,\s]*)*$`)

// Compute is the handler for the COMPUTE_MATH capability.
func Compute(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "COMPUTE_MATH", "expression", input.Expression)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	if input.Expression == "" {
		return cty.NilVal, fmt.Errorf("expression must not be empty")
	}
	if !allowed.MatchString(input.Expression) {
		return cty.NilVal, fmt.Errorf("expression contains disallowed constructs: %q", input.Expression)
	}

	vm := goja.New()
	res, err := vm.RunString(input.Expression)
	if err != nil {
		return cty.NilVal, fmt.Errorf("evaluation failed: %w", err)
	}

	value := res.ToFloat()
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return cty.NilVal, fmt.Errorf("expression %q did not evaluate to a finite number", input.Expression)
	}
	if input.Precision > 0 {
		scale := math.Pow(10, float64(input.Precision))
		value = math.Round(value*scale) / scale
	}

	return cty.ObjectVal(map[string]cty.Value{
		"value": cty.NumberFloatVal(value),
		"text":  cty.StringVal(fmt.Sprintf("%g", value)),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("ComputeMath", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Compute(ctx, input.(*Input))
		},
	})
}
