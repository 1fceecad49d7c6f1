package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/config"
	"github.com/vk/intentflow/internal/decompose"
	"github.com/vk/intentflow/internal/executor"
	"github.com/vk/intentflow/internal/intent"
	"github.com/vk/intentflow/internal/plan"
	"github.com/vk/intentflow/internal/registry"
	"github.com/vk/intentflow/internal/result"
)

type echoInput struct {
	Text string `hcl:"text,optional"`
}

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return e
}

// testSetup builds a model with one two-action rule and a registry backing
// its capabilities.
func testSetup(t *testing.T) (*config.Model, *registry.Registry) {
	t.Helper()

	model := config.NewModel()
	model.Rules["greet"] = &config.Rule{
		Category: "greet",
		Actions: []*config.ActionTemplate{
			{
				ID:            "compose",
				Capability:    "OK",
				Parameters:    map[string]hcl.Expression{"text": expr(t, `"hello ${intent.params.name}"`)},
				EstimatedTime: time.Second,
			},
			{
				ID:            "deliver",
				Capability:    "OK",
				Parameters:    map[string]hcl.Expression{"text": expr(t, `action.compose.output.text`)},
				EstimatedTime: time.Second,
			},
		},
	}
	model.Rules["explode"] = &config.Rule{
		Category: "explode",
		Actions: []*config.ActionTemplate{
			{ID: "boom", Capability: "FAIL", EstimatedTime: time.Second},
		},
	}
	model.Rules["tangled"] = &config.Rule{
		Category: "tangled",
		Actions: []*config.ActionTemplate{
			{ID: "x", Capability: "OK", EstimatedTime: time.Second, After: []string{"y"}},
			{ID: "y", Capability: "OK", EstimatedTime: time.Second, After: []string{"x"}},
		},
	}
	model.Capabilities["OK"] = &config.CapabilityDefinition{
		Type: "OK", Handler: "Echo",
		Inputs: map[string]*config.InputDefinition{
			"text": {Name: "text", Type: cty.String, Optional: true},
		},
	}
	model.Capabilities["FAIL"] = &config.CapabilityDefinition{Type: "FAIL", Handler: "Fail"}

	reg := registry.New()
	reg.RegisterCapability("Echo", &registry.Capability{
		NewInput: func() any { return new(echoInput) },
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			in := input.(*echoInput)
			return cty.ObjectVal(map[string]cty.Value{"text": cty.StringVal(in.Text)}), nil
		},
	})
	reg.RegisterCapability("Fail", &registry.Capability{
		Fn: func(ctx context.Context, input any) (cty.Value, error) {
			return cty.NilVal, errors.New("boom")
		},
	})
	reg.PopulateDefinitionsFromModel(model)
	return model, reg
}

func TestPlanAndExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("full cycle succeeds", func(t *testing.T) {
		model, reg := testSetup(t)
		eng := New(model, reg, nil, nil, nil, executor.Options{})

		res, err := eng.PlanAndExecute(ctx, &intent.Intent{
			Category:   "greet",
			Confidence: 0.9,
			Parameters: map[string]any{"name": "Ada"},
		}, 10*time.Second)
		require.NoError(t, err)

		require.Equal(t, result.StatusSuccess, res.Status)
		assert.Equal(t, "hello Ada", res.PerAction["deliver"].Output.GetAttr("text").AsString())
	})

	t.Run("unknown category is a pre-execution error", func(t *testing.T) {
		model, reg := testSetup(t)
		eng := New(model, reg, nil, nil, nil, executor.Options{})

		_, err := eng.PlanAndExecute(ctx, &intent.Intent{Category: "ghost", Confidence: 0.9}, time.Second)
		var derr *decompose.Error
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "ghost", derr.Category)
	})

	t.Run("cycle is a pre-execution error", func(t *testing.T) {
		model, reg := testSetup(t)
		eng := New(model, reg, nil, nil, nil, executor.Options{})

		_, err := eng.PlanAndExecute(ctx, &intent.Intent{Category: "tangled", Confidence: 0.9}, time.Second)
		var gerr *plan.GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, plan.CycleDetected, gerr.Kind)
	})

	t.Run("runtime failure is a result, not an error", func(t *testing.T) {
		model, reg := testSetup(t)
		eng := New(model, reg, nil, nil, nil, executor.Options{})

		res, err := eng.PlanAndExecute(ctx, &intent.Intent{Category: "explode", Confidence: 0.9}, 10*time.Second)
		require.NoError(t, err)
		assert.Equal(t, result.StatusFailure, res.Status)
		assert.Equal(t, action.Failed, res.PerAction["boom"].Status)
	})

	t.Run("sub-intents merge into one plan", func(t *testing.T) {
		model, reg := testSetup(t)
		eng := New(model, reg, nil, nil, nil, executor.Options{})

		res, err := eng.PlanAndExecute(ctx, &intent.Intent{
			Category: "combo", Confidence: 0.8,
			SubIntents: []intent.Intent{
				{Category: "greet", Confidence: 0.9, Parameters: map[string]any{"name": "Ada"}},
				{Category: "greet", Confidence: 0.9, Parameters: map[string]any{"name": "Grace"}},
			},
		}, 10*time.Second)
		require.NoError(t, err)

		require.Equal(t, result.StatusSuccess, res.Status)
		require.Len(t, res.PerAction, 4)
		assert.Equal(t, "hello Ada", res.PerAction["deliver@0"].Output.GetAttr("text").AsString())
		assert.Equal(t, "hello Grace", res.PerAction["deliver@1"].Output.GetAttr("text").AsString())
	})
}
