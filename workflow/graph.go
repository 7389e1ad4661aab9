package workflow

import (
	"errors"
	"fmt"
)

// ErrRecursiveDependency is returned when a workflow's step graph
// contains a dependency cycle, making it impossible to order the steps.
var ErrRecursiveDependency = errors.New("planllama: workflow cannot execute steps due to a recursive dependency")

// validateGraph checks that every declared dependency names a declared
// step and that the dependency graph is acyclic. Acyclicity is checked
// by Kahn-style consumption: repeatedly remove zero-in-degree steps;
// anything left over sits on a cycle.
func validateGraph(steps map[string]Step) error {
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))

	for name := range steps {
		indegree[name] = 0
	}
	for name, step := range steps {
		for _, dep := range step.Needs {
			if _, ok := steps[dep]; !ok {
				return fmt.Errorf("workflow step %s depends on undeclared step %s", name, dep)
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	queue := make([]string, 0, len(steps))
	for name, deg := range indegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}

	consumed := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		consumed++
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if consumed != len(steps) {
		return ErrRecursiveDependency
	}
	return nil
}
