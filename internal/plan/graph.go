// Package plan builds and validates dependency graphs of actions, resolves
// them into parallel execution stages and owns the per-plan data handed to
// the executor.
package plan

import (
	"sort"

	"github.com/vk/intentflow/internal/action"
)

// Graph owns the set of actions of one plan and the directed dependency
// relation between them. A constructed Graph is always acyclic with no
// dangling edges; Build refuses anything else.
type Graph struct {
	// Actions stores all actions keyed by their unique id.
	Actions map[string]*action.Action
	// deps maps an action id to the set of ids it depends on.
	deps map[string]map[string]struct{}
	// dependents is the inverted relation, kept for skip propagation.
	dependents map[string]map[string]struct{}
}

// Build assembles actions and declared dependencies into a validated graph.
// It fails with a GraphError for a duplicate action id, a dependency
// referencing an unknown action id, or a dependency cycle. Self-references
// are cycles of length one.
func Build(actions []*action.Action, dependencies map[string][]string) (*Graph, error) {
	g := &Graph{
		Actions:    make(map[string]*action.Action, len(actions)),
		deps:       make(map[string]map[string]struct{}, len(actions)),
		dependents: make(map[string]map[string]struct{}, len(actions)),
	}

	for _, a := range actions {
		if _, dup := g.Actions[a.ID]; dup {
			return nil, &GraphError{Kind: DuplicateAction, ActionID: a.ID}
		}
		g.Actions[a.ID] = a
		g.deps[a.ID] = make(map[string]struct{})
		g.dependents[a.ID] = make(map[string]struct{})
	}

	for id, depIDs := range dependencies {
		if _, ok := g.Actions[id]; !ok {
			return nil, &GraphError{Kind: DanglingReference, ActionID: id, Ref: id}
		}
		for _, depID := range depIDs {
			if _, ok := g.Actions[depID]; !ok {
				return nil, &GraphError{Kind: DanglingReference, ActionID: id, Ref: depID}
			}
			if depID == id {
				return nil, &GraphError{Kind: CycleDetected, Cycle: []string{id}}
			}
			g.deps[id][depID] = struct{}{}
			g.dependents[depID][id] = struct{}{}
		}
	}

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

// Validate re-checks the structural invariants of the graph. It is exposed
// for callers that want to vet a graph standalone before committing to a
// plan; Build already guarantees both invariants.
func (g *Graph) Validate() error {
	for id, depIDs := range g.deps {
		for depID := range depIDs {
			if _, ok := g.Actions[depID]; !ok {
				return &GraphError{Kind: DanglingReference, ActionID: id, Ref: depID}
			}
		}
	}
	return g.detectCycles()
}

// detectCycles runs a depth-first traversal with three-color marking. Any
// back-edge to an in-progress node is a cycle, reported as the ordered list
// of ids on the stack from the first occurrence of the repeated node.
func (g *Graph) detectCycles() error {
	const (
		unvisited  = 0
		inProgress = 1
		done       = 2
	)
	color := make(map[string]int, len(g.Actions))
	var stack []string

	var visit func(id string) *GraphError
	visit = func(id string) *GraphError {
		color[id] = inProgress
		stack = append(stack, id)

		for depID := range g.deps[id] {
			switch color[depID] {
			case inProgress:
				// Slice the stack from the repeated node to report the
				// cycle in dependency order.
				start := 0
				for i, sid := range stack {
					if sid == depID {
						start = i
						break
					}
				}
				cycle := make([]string, len(stack)-start)
				copy(cycle, stack[start:])
				return &GraphError{Kind: CycleDetected, Cycle: cycle}
			case unvisited:
				if err := visit(depID); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = done
		return nil
	}

	// Iterate ids in sorted order so error reporting is deterministic.
	for _, id := range g.sortedIDs() {
		if color[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dependencies returns the ids the given action depends on, sorted.
func (g *Graph) Dependencies(id string) []string {
	return sortedKeys(g.deps[id])
}

// Dependents returns the ids that depend directly on the given action, sorted.
func (g *Graph) Dependents(id string) []string {
	return sortedKeys(g.dependents[id])
}

// TransitiveDependents returns every action reachable downstream from the
// given id, sorted. Used to propagate a permanent failure to exactly the
// dependent subgraph and nothing else.
func (g *Graph) TransitiveDependents(id string) []string {
	seen := make(map[string]struct{})
	var walk func(cur string)
	walk = func(cur string) {
		for dep := range g.dependents[cur] {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			walk(dep)
		}
	}
	walk(id)
	return sortedKeys(seen)
}

// Len returns the number of actions in the graph.
func (g *Graph) Len() int {
	return len(g.Actions)
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.Actions))
	for id := range g.Actions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
