// Package speak provides the SPEAK capability: handing a rendered message to
// an external text-to-speech command.
package speak

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the SPEAK capability.
type Input struct {
	Text    string `hcl:"text"`
	Command string `hcl:"command,optional"`
}

// Say is the handler for the SPEAK capability. With no command configured,
// the text goes to stdout, which keeps headless environments working.
func Say(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "SPEAK")
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	if input.Text == "" {
		return cty.NilVal, fmt.Errorf("text must not be empty")
	}

	if input.Command == "" {
		fmt.Fprintln(os.Stdout, input.Text)
		return cty.ObjectVal(map[string]cty.Value{
			"spoken": cty.BoolVal(true),
		}), nil
	}

	parts := strings.Fields(input.Command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(input.Text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return cty.NilVal, fmt.Errorf("speech command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}

	return cty.ObjectVal(map[string]cty.Value{
		"spoken": cty.BoolVal(true),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("Speak", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Say(ctx, input.(*Input))
		},
	})
}
