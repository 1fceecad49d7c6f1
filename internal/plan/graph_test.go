package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/intentflow/internal/action"
)

func mkAction(id string, estimate time.Duration, priority int) *action.Action {
	return action.New(id, action.CallAPI, nil, estimate, priority)
}

func mkActions(ids ...string) []*action.Action {
	out := make([]*action.Action, len(ids))
	for i, id := range ids {
		out[i] = mkAction(id, time.Second, 0)
	}
	return out
}

func TestBuild(t *testing.T) {
	t.Run("valid graph", func(t *testing.T) {
		g, err := Build(mkActions("a", "b", "c"), map[string][]string{
			"b": {"a"},
			"c": {"a", "b"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, g.Len())
		assert.Equal(t, []string{"a", "b"}, g.Dependencies("c"))
		assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		_, err := Build(mkActions("a", "a"), nil)
		var gerr *GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, DuplicateAction, gerr.Kind)
		assert.Equal(t, "a", gerr.ActionID)
		assert.ErrorContains(t, err, "duplicate action id 'a'")
	})

	t.Run("dangling reference rejected", func(t *testing.T) {
		_, err := Build(mkActions("a", "b"), map[string][]string{
			"b": {"ghost"},
		})
		var gerr *GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, DanglingReference, gerr.Kind)
		assert.Equal(t, "b", gerr.ActionID)
		assert.Equal(t, "ghost", gerr.Ref)
	})

	t.Run("self reference is a cycle of length one", func(t *testing.T) {
		_, err := Build(mkActions("a"), map[string][]string{
			"a": {"a"},
		})
		var gerr *GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, CycleDetected, gerr.Kind)
		assert.Equal(t, []string{"a"}, gerr.Cycle)
	})

	t.Run("cycle reported with ordered path", func(t *testing.T) {
		_, err := Build(mkActions("a", "b", "c"), map[string][]string{
			"a": {"c"},
			"b": {"a"},
			"c": {"b"},
		})
		var gerr *GraphError
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, CycleDetected, gerr.Kind)
		assert.Len(t, gerr.Cycle, 3)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("diamond with transitive edge is not a cycle", func(t *testing.T) {
		_, err := Build(mkActions("a", "b", "c", "d"), map[string][]string{
			"b": {"a"},
			"c": {"a"},
			"d": {"b", "c", "a"},
		})
		assert.NoError(t, err)
	})
}

func TestTransitiveDependents(t *testing.T) {
	g, err := Build(mkActions("a", "b", "c", "d", "e"), map[string][]string{
		"b": {"a"},
		"c": {"b"},
		"d": {"b"},
		// e is independent of a's branch.
		"e": nil,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "d"}, g.TransitiveDependents("a"))
	assert.Equal(t, []string{"c", "d"}, g.TransitiveDependents("b"))
	assert.Empty(t, g.TransitiveDependents("e"))
}

func TestValidate(t *testing.T) {
	g, err := Build(mkActions("a", "b"), map[string][]string{"b": {"a"}})
	require.NoError(t, err)
	assert.NoError(t, g.Validate())

	// A mutated graph must be caught.
	g.deps["a"]["b"] = struct{}{}
	assert.Error(t, g.Validate())
}
