// Package browser provides the CONTROL_BROWSER capability: driving a
// headless Chrome instance to load a page and extract content.
package browser

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/ctxlog"
	"github.com/vk/intentflow/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of the CONTROL_BROWSER capability.
type Input struct {
	URL      string `hcl:"url"`
	Selector string `hcl:"selector,optional"`
	Click    string `hcl:"click,optional"`
}

// Browse is the handler for the CONTROL_BROWSER capability. It navigates to
// the URL, optionally clicks an element, and extracts the text behind the
// selector (the whole body when none is given).
func Browse(ctx context.Context, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("capability", "CONTROL_BROWSER", "url", input.URL)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	selector := input.Selector
	if selector == "" {
		selector = "body"
	}

	tasks := chromedp.Tasks{
		chromedp.Navigate(input.URL),
	}
	if input.Click != "" {
		tasks = append(tasks, chromedp.Click(input.Click, chromedp.NodeVisible))
	}

	var title, text string
	tasks = append(tasks,
		chromedp.Title(&title),
		chromedp.Text(selector, &text, chromedp.NodeReady),
	)

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return cty.NilVal, fmt.Errorf("browser automation failed: %w", err)
	}
	logger.Debug("Page loaded.", "title", title, "text_len", len(text))

	return cty.ObjectVal(map[string]cty.Value{
		"title": cty.StringVal(title),
		"text":  cty.StringVal(strings.TrimSpace(text)),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterCapability("ControlBrowser", &registry.Capability{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return Browse(ctx, input.(*Input))
		},
	})
}
