package fallback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/intentflow/internal/action"
	"github.com/vk/intentflow/internal/plan"
)

func testPlan(t *testing.T, fallbacks map[string]*action.Action) *plan.Plan {
	t.Helper()
	a := action.New("a", action.CallAPI, nil, time.Second, 0)
	b := action.New("b", action.Speak, nil, time.Second, 0)
	g, err := plan.Build([]*action.Action{a, b}, map[string][]string{"b": {"a"}})
	require.NoError(t, err)
	return plan.New(g, fallbacks)
}

func TestHandleFailure(t *testing.T) {
	ctx := context.Background()

	fb := action.New("a.fallback", action.ControlBrowser, nil, time.Second, 0)
	fb.IsFallback = true
	fb.ReplacesID = "a"

	t.Run("returns the registered substitute once", func(t *testing.T) {
		p := testPlan(t, map[string]*action.Action{"a": fb})
		c := NewCoordinator(p)

		failed := p.Graph.Actions["a"]
		got := c.HandleFailure(ctx, failed)
		require.Equal(t, fb, got)

		// A second failure of the same action must not hand it out again.
		assert.Nil(t, c.HandleFailure(ctx, failed))
	})

	t.Run("no substitute registered", func(t *testing.T) {
		p := testPlan(t, nil)
		c := NewCoordinator(p)
		assert.Nil(t, c.HandleFailure(ctx, p.Graph.Actions["a"]))
	})

	t.Run("fallback depth is exactly one", func(t *testing.T) {
		p := testPlan(t, map[string]*action.Action{"a": fb})
		c := NewCoordinator(p)

		// Even if someone registered a fallback under the fallback's id,
		// a failed fallback ends the branch.
		p.Fallbacks["a.fallback"] = action.New("a.fallback.fallback", action.Speak, nil, time.Second, 0)
		assert.Nil(t, c.HandleFailure(ctx, fb))
	})
}
