package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/intentflow/internal/action"
)

func stageIDs(s Stage) []string {
	ids := make([]string, len(s))
	for i, a := range s {
		ids[i] = a.ID
	}
	return ids
}

func TestResolve(t *testing.T) {
	t.Run("diamond resolves to three stages", func(t *testing.T) {
		g, err := Build(mkActions("a", "b", "c", "d"), map[string][]string{
			"b": {"a"},
			"c": {"a"},
			"d": {"b", "c"},
		})
		require.NoError(t, err)

		stages, err := Resolve(g)
		require.NoError(t, err)
		require.Len(t, stages, 3)
		assert.Equal(t, []string{"a"}, stageIDs(stages[0]))
		assert.Equal(t, []string{"b", "c"}, stageIDs(stages[1]))
		assert.Equal(t, []string{"d"}, stageIDs(stages[2]))
	})

	t.Run("independent actions share one stage", func(t *testing.T) {
		g, err := Build(mkActions("a", "b", "c"), nil)
		require.NoError(t, err)

		stages, err := Resolve(g)
		require.NoError(t, err)
		require.Len(t, stages, 1)
		assert.Len(t, stages[0], 3)
	})

	t.Run("stage order is priority desc then estimate asc then id", func(t *testing.T) {
		actions := []*action.Action{
			mkAction("slow_low", 5*time.Second, 0),
			mkAction("fast_low", 1*time.Second, 0),
			mkAction("high", 3*time.Second, 10),
			mkAction("also_fast_low", 1*time.Second, 0),
		}
		g, err := Build(actions, nil)
		require.NoError(t, err)

		stages, err := Resolve(g)
		require.NoError(t, err)
		require.Len(t, stages, 1)
		assert.Equal(t, []string{"high", "also_fast_low", "fast_low", "slow_low"}, stageIDs(stages[0]))
	})

	t.Run("resolving twice yields identical stages", func(t *testing.T) {
		g, err := Build(mkActions("a", "b", "c", "d", "e"), map[string][]string{
			"c": {"a", "b"},
			"d": {"c"},
			"e": {"c"},
		})
		require.NoError(t, err)

		first, err := Resolve(g)
		require.NoError(t, err)
		second, err := Resolve(g)
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, stageIDs(first[i]), stageIDs(second[i]))
		}
	})

	t.Run("every dependency lands in an earlier stage", func(t *testing.T) {
		g, err := Build(mkActions("a", "b", "c", "d", "e", "f"), map[string][]string{
			"b": {"a"},
			"c": {"a"},
			"d": {"b"},
			"e": {"b", "c"},
			"f": {"d", "e"},
		})
		require.NoError(t, err)

		stages, err := Resolve(g)
		require.NoError(t, err)

		stageOf := make(map[string]int)
		for i, stage := range stages {
			for _, a := range stage {
				stageOf[a.ID] = i
			}
		}
		for id := range g.Actions {
			for _, dep := range g.Dependencies(id) {
				assert.Less(t, stageOf[dep], stageOf[id], "dependency %s of %s must be staged earlier", dep, id)
			}
		}
	})
}

func TestCriticalPath(t *testing.T) {
	actions := []*action.Action{
		mkAction("a", 2*time.Second, 0),
		mkAction("b", 3*time.Second, 0),
		mkAction("c", 1*time.Second, 0),
		mkAction("d", 4*time.Second, 0),
	}
	// Chain a -> b -> d is 9s; c is a cheap side branch.
	g, err := Build(actions, map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b"},
	})
	require.NoError(t, err)

	assert.Equal(t, 9*time.Second, CriticalPath(g))
}

func TestPlanNew(t *testing.T) {
	g, err := Build(mkActions("a", "b"), map[string][]string{"b": {"a"}})
	require.NoError(t, err)

	p := New(g, nil)
	assert.NotEmpty(t, p.ID)
	assert.NotNil(t, p.Fallbacks)
	assert.Equal(t, 2*time.Second, p.EstimatedTime)

	q := New(g, nil)
	assert.NotEqual(t, p.ID, q.ID)
}
