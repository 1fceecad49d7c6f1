// Package respond provides the GENERATE_RESPONSE capability: rendering a
// user-facing message from a template and the outputs of earlier actions.
package respond

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"text/template"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/ctyconv"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the GENERATE_RESPONSE capability.
type Input struct {
	Template string    `hcl:"template"`
	Data     cty.Value `hcl:"data,optional"`
}

// Generate is the handler for the GENERATE_RESPONSE capability.
func Generate(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "GENERATE_RESPONSE")
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	tmpl, err := template.New("response").Option("missingkey=error").Parse(input.Template)
	if err != nil {
		return cty.NilVal, fmt.Errorf("invalid response template: %w", err)
	}

	var data any
	if input.Data != cty.NilVal && input.Data.IsKnown() && !input.Data.IsNull() {
		data, err = ctyconv.FromCtyValue(input.Data)
		if err != nil {
			return cty.NilVal, fmt.Errorf("cannot render template data: %w", err)
		}
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return cty.NilVal, fmt.Errorf("response rendering failed: %w", err)
	}
	text := sb.String()
	logger.Debug("Response rendered.", "length", len(text))

	return cty.ObjectVal(map[string]cty.Value{
		"text": cty.StringVal(text),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("GenerateResponse", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Generate(ctx, input.(*Input))
		},
	})
}
