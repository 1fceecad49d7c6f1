package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/config"
)

// Module is the interface all capability modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// InvokeFunc executes one action. The input is the pointer returned by
// NewInput, already populated from the action's evaluated parameters. The
// function must honor ctx cancellation; the executor bounds every invocation
// with a deadline.
type InvokeFunc func(ctx context.Context, input any) (cty.Value, error)

// Capability holds the compiled Go side of one capability handler.
type Capability struct {
	// NewInput returns a fresh pointer to the handler's input struct, whose
	// fields carry `hcl` tags matching the manifest's declared inputs. Nil
	// when the handler takes no inputs.
	NewInput func() any
	// InputType is the struct type behind NewInput, used for manifest
	// parity validation. Derived from NewInput at registration when left
	// unset; nil when NewInput is nil.
	InputType reflect.Type
	Fn        InvokeFunc
}

// Registry holds all registered capability handlers and manifest definitions
// for a single application instance.
type Registry struct {
	Handlers    map[string]*Capability
	Definitions map[action.Type]*config.CapabilityDefinition
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		Handlers:    make(map[string]*Capability),
		Definitions: make(map[action.Type]*config.CapabilityDefinition),
	}
}

// RegisterCapability registers a Go handler under the given name. A
// duplicate name is a programmer error and panics at startup.
func (r *Registry) RegisterCapability(name string, c *Capability) {
	if _, exists := r.Handlers[name]; exists {
		panic(fmt.Sprintf("capability handler with name '%s' already registered", name))
	}
	if c.Fn == nil {
		panic(fmt.Sprintf("capability handler '%s' registered without an invoke function", name))
	}
	if c.InputType == nil && c.NewInput != nil {
		t := reflect.TypeOf(c.NewInput())
		if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
			panic(fmt.Sprintf("capability handler '%s': NewInput must return a pointer to a struct", name))
		}
		c.InputType = t.Elem()
	}
	slog.Debug("Registering capability handler.", "name", name)
	r.Handlers[name] = c
}

// PopulateDefinitionsFromModel copies the loaded capability manifests from
// the config model into the registry for lookup during execution.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) {
	for key, def := range model.Capabilities {
		r.Definitions[action.Type(key)] = def
	}
}

// Resolve returns the handler and manifest for an action type, or an error
// when either side is missing. The executor calls this once per dispatch.
func (r *Registry) Resolve(typ action.Type) (*Capability, *config.CapabilityDefinition, error) {
	def, ok := r.Definitions[typ]
	if !ok {
		return nil, nil, fmt.Errorf("no capability manifest for action type '%s'", typ)
	}
	handler, ok := r.Handlers[def.Handler]
	if !ok {
		return nil, nil, fmt.Errorf("capability handler '%s' for action type '%s' not registered", def.Handler, typ)
	}
	return handler, def, nil
}
