// Package httpapi provides the CALL_API capability: a single HTTP request
// against an external service, bounded by the action's context.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the CALL_API capability.
type Input struct {
	URL     string            `hcl:"url"`
	Method  string            `hcl:"method,optional"`
	Body    string            `hcl:"body,optional"`
	Headers map[string]string `hcl:"headers,optional"`
}

// client is shared across invocations; per-request deadlines come from ctx.
var client = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// Call is the handler for the CALL_API capability.
func Call(ctx context.Context, input *Input) (cty.Value, error) {
	method := strings.ToUpper(input.Method)
	if method == "" {
		method = http.MethodGet
	}

	logger := ctxlog.FromContext(ctx).With("capability", "CALL_API", "method", method, "url", input.URL)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	var body io.Reader
	if input.Body != "" {
		body = strings.NewReader(input.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, input.URL, body)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create request: %w", err)
	}
	for name, value := range input.Headers {
		req.Header.Set(name, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Debug("Received HTTP response", "status", resp.Status)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to read response body: %w", err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"status_code": cty.NumberIntVal(int64(resp.StatusCode)),
		"body":        cty.StringVal(string(respBody)),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("CallAPI", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Call(ctx, input.(*Input))
		},
	})
}
