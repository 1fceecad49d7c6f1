// Package device provides the CONTROL_DEVICE capability: sending a command
// to a smart-home hub over Socket.IO and waiting for its acknowledgement
// event.
package device

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/ctyconv"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the CONTROL_DEVICE capability.
type Input struct {
	URL                string            `hcl:"url"`
	Namespace          string            `hcl:"namespace,optional"`
	Device             string            `hcl:"device"`
	Command            string            `hcl:"command"`
	Args               map[string]string `hcl:"args,optional"`
	AckEvent           string            `hcl:"ack_event,optional"`
	InsecureSkipVerify bool              `hcl:"insecure_skip_verify,optional"`
}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	ack any
	err error
}

// Control is the handler for the CONTROL_DEVICE capability. It connects,
// emits the command and blocks until the hub acknowledges or ctx expires.
func Control(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "CONTROL_DEVICE", "url", input.URL, "device", input.Device, "command", input.Command)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	ackEvent := input.AckEvent
	if ackEvent == "" {
		ackEvent = "command_ack"
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to parse URL: %w", err)
	}

	var isConnected atomic.Bool
	done := make(chan opResult, 1)

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting hub client")
		io.Disconnect()
	}()

	command := map[string]any{
		"device":  input.Device,
		"command": input.Command,
	}
	if len(input.Args) > 0 {
		args := make(map[string]any, len(input.Args))
		for k, v := range input.Args {
			args[k] = v
		}
		command["args"] = args
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Debug("Connected to hub", "namespace", input.Namespace, "sid", io.Id())
		payload, _ := json.Marshal(command)
		logger.Info("Emitting device command", "payload", string(payload))
		io.Emit("command", command)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		done <- opResult{err: errs[0].(error)}
	})

	io.On(types.EventName(ackEvent), func(data ...any) {
		var ack any
		if len(data) > 0 {
			ack = data[0]
		}
		done <- opResult{ack: ack}
	})

	io.Connect()

	select {
	case <-ctx.Done():
		if isConnected.Load() {
			return cty.NilVal, fmt.Errorf("cancelled after connecting while waiting for event '%s': %w", ackEvent, ctx.Err())
		}
		return cty.NilVal, fmt.Errorf("cancelled while waiting for hub connection: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return cty.NilVal, fmt.Errorf("hub connection failed: %w", res.err)
		}
		ackVal, err := ctyconv.ToCtyValue(res.ack)
		if err != nil {
			return cty.NilVal, fmt.Errorf("hub acknowledgement is not convertible: %w", err)
		}
		return cty.ObjectVal(map[string]cty.Value{
			"ack": ackVal,
		}), nil
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("ControlDevice", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Control(ctx, input.(*Input))
		},
	})
}
