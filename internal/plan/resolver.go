package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/vk/intentflow/internal/action"
)

// Stage is a maximal set of mutually independent actions safe to start
// concurrently. Stage k only contains actions whose dependencies all live in
// stages 0..k-1.
type Stage []*action.Action

// Resolve converts a validated graph into an ordered sequence of execution
// stages using iterative topological layering: repeatedly collect every
// action whose dependencies are fully satisfied by already-scheduled stages.
// This yields the minimum number of stages consistent with the dependency
// constraints, i.e. maximum parallelism.
//
// Within a stage, actions are ordered by priority descending, then
// estimated time ascending, then id. All stage members start concurrently
// regardless of order; the order only decides dispatch under a concurrency
// limit.
func Resolve(g *Graph) ([]Stage, error) {
	remaining := make(map[string]int, g.Len())
	for id := range g.Actions {
		remaining[id] = len(g.deps[id])
	}

	var stages []Stage
	scheduled := 0

	for scheduled < g.Len() {
		var stage Stage
		for id, missing := range remaining {
			if missing == 0 {
				stage = append(stage, g.Actions[id])
			}
		}
		if len(stage) == 0 {
			// Unreachable for a Build-validated graph; guards against a
			// graph mutated behind our back.
			return nil, fmt.Errorf("cannot stage graph: %d actions remain with unsatisfiable dependencies", len(remaining))
		}

		sortStage(stage)

		for _, a := range stage {
			delete(remaining, a.ID)
			for dependent := range g.dependents[a.ID] {
				if _, pending := remaining[dependent]; pending {
					remaining[dependent]--
				}
			}
		}

		scheduled += len(stage)
		stages = append(stages, stage)
	}

	return stages, nil
}

// sortStage orders cheap, high-priority work first for resource-constrained
// dispatch. The ordering is total, so resolving the same graph twice yields
// identical stages.
func sortStage(stage Stage) {
	sort.Slice(stage, func(i, j int) bool {
		if stage[i].Priority != stage[j].Priority {
			return stage[i].Priority > stage[j].Priority
		}
		if stage[i].EstimatedTime != stage[j].EstimatedTime {
			return stage[i].EstimatedTime < stage[j].EstimatedTime
		}
		return stage[i].ID < stage[j].ID
	})
}

// CriticalPath returns the length of the longest dependency chain measured
// in time estimates. This is the plan's overall estimate: the lower bound on
// wall-clock time with unbounded concurrency, not the total work.
func CriticalPath(g *Graph) time.Duration {
	memo := make(map[string]time.Duration, g.Len())

	var longest func(id string) time.Duration
	longest = func(id string) time.Duration {
		if d, ok := memo[id]; ok {
			return d
		}
		var best time.Duration
		for depID := range g.deps[id] {
			if d := longest(depID); d > best {
				best = d
			}
		}
		total := best + g.Actions[id].EstimatedTime
		memo[id] = total
		return total
	}

	var max time.Duration
	for id := range g.Actions {
		if d := longest(id); d > max {
			max = d
		}
	}
	return max
}
