// Package script provides the EXECUTE_CODE capability: running a JavaScript
// snippet on an embedded VM with cooperative cancellation.
package script

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/dop251/goja"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/ctyconv"
	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the EXECUTE_CODE capability. Data is
// exposed to the script as the global `data` value.
type Input struct {
	Source string    `hcl:"source"`
	Data   cty.Value `hcl:"data,optional"`
}

var errInterrupted = errors.New("script interrupted")

// Execute is the handler for the EXECUTE_CODE capability. The VM is
// interrupted as soon as ctx is done, so a runaway script cannot outlive the
// action's timeout.
func Execute(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "EXECUTE_CODE")
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	if input.Source == "" {
		return cty.NilVal, fmt.Errorf("source must not be empty")
	}

	vm := goja.New()
	if input.Data != cty.NilVal && input.Data.IsKnown() && !input.Data.IsNull() {
		data, err := ctyconv.FromCtyValue(input.Data)
		if err != nil {
			return cty.NilVal, fmt.Errorf("cannot expose data to script: %w", err)
		}
		if err := vm.Set("data", data); err != nil {
			return cty.NilVal, fmt.Errorf("cannot expose data to script: %w", err)
		}
	}

	watchdog := make(chan struct{})
	defer close(watchdog)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(errInterrupted)
		case <-watchdog:
		}
	}()

	res, err := vm.RunString(input.Source)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return cty.NilVal, fmt.Errorf("script cancelled: %w", ctx.Err())
		}
		return cty.NilVal, fmt.Errorf("script failed: %w", err)
	}

	out, err := ctyconv.ToCtyValue(res.Export())
	if err != nil {
		return cty.NilVal, fmt.Errorf("script returned an unconvertible value: %w", err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"result": out,
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("ExecuteCode", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Execute(ctx, input.(*Input))
		},
	})
}
