// Package graph implements the Graph Planner: it partitions a workflow's
// runnable tasks into ordered stages using a Kahn-style topological sort,
// so the Runner can fan out every task in a stage concurrently and only
// wait on the stage boundary (spec.md §4.3). Grounded on the staged,
// level-by-level scheduling idiom compozy-compozy's executor approximates
// sequentially (engine/domain/workflow/executor/executor.go's
// executeWorkflowTasks loop) generalized here to true DAG stages, since
// spec.md requires concurrent stage fan-out rather than linear transitions.
package graph

import (
	"sort"

	"github.com/vyPal/XTomate/engine/core"
	"github.com/vyPal/XTomate/engine/workflow"
)

// Plan computes the ordered list of execution stages for w's runnable
// tasks. Each stage is a set of task names with no undispatched
// dependency among them; stage N+1's tasks all depend, directly or
// transitively, on at least one task in an earlier stage.
//
// Only runnable tasks (Task.IsRunnable) participate in the stage graph.
// A dependency naming a task that is not runnable (non-existent, or
// explicitly run = false) never blocks staging: it is the Runner's job
// to resolve that dependency lazily, by name, the moment a task that
// needs it actually executes (spec.md §4.6.3) — the planner does not
// need to know whether that lazy resolution will succeed.
func Plan(w *workflow.Workflow) ([][]string, error) {
	runnable := runnableTaskNames(w)

	inDegree := make(map[string]int, len(runnable))
	dependents := make(map[string][]string, len(runnable))
	for name := range runnable {
		inDegree[name] = 0
	}
	for name := range runnable {
		task := w.Tasks[name]
		for _, dep := range task.Dependencies {
			if _, ok := runnable[dep.Name]; !ok {
				continue
			}
			inDegree[name]++
			dependents[dep.Name] = append(dependents[dep.Name], name)
		}
	}

	var stages [][]string
	visited := 0
	frontier := zeroDegreeNames(inDegree)

	for len(frontier) > 0 {
		sort.Strings(frontier)
		stages = append(stages, frontier)
		visited += len(frontier)

		var next []string
		for _, name := range frontier {
			for _, dependent := range dependents[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		frontier = next
	}

	if visited != len(runnable) {
		return nil, core.NewErrorf(core.CodeCycleDetected,
			"dependency cycle detected among %d unscheduled task(s)", len(runnable)-visited)
	}
	return stages, nil
}

func runnableTaskNames(w *workflow.Workflow) map[string]struct{} {
	names := make(map[string]struct{}, len(w.Tasks))
	for name, task := range w.Tasks {
		if task.IsRunnable() {
			names[name] = struct{}{}
		}
	}
	return names
}

func zeroDegreeNames(inDegree map[string]int) []string {
	var names []string
	for name, degree := range inDegree {
		if degree == 0 {
			names = append(names, name)
		}
	}
	return names
}
