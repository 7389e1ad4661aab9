package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Results is the accumulated step-result table for one workflow run:
// step name → that step's settled result. It grows monotonically while
// the run progresses and never shrinks.
type Results map[string]json.RawMessage

// Has reports whether the named step has settled.
func (r Results) Has(step string) bool {
	_, ok := r[step]
	return ok
}

// Decode unmarshals the named step's result into out.
func (r Results) Decode(step string, out any) error {
	raw, ok := r[step]
	if !ok {
		return fmt.Errorf("workflow: no result for step %q", step)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("workflow: decode result for step %q: %w", step, err)
	}
	return nil
}

func (r Results) clone() Results {
	out := make(Results, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// StepFunc executes one workflow step. It receives the result table
// accumulated so far, guaranteed to contain every step named in the
// step's Needs.
type StepFunc func(ctx context.Context, results Results) (any, error)

// Step declares one workflow step: its handler and the steps whose
// results it needs. A step with no Needs is eligible as soon as the
// run starts.
type Step struct {
	Needs []string
	Run   StepFunc
}

// Definition declares a named workflow as a set of steps. Definitions
// are immutable once registered.
type Definition struct {
	Name  string
	Steps map[string]Step
}

// Validate checks the definition: a name, at least one step, a
// function per step, every dependency declared, and an acyclic graph.
// The orchestrator re-validates at the start of every run, so a stale
// or hand-built definition fails before any step is dispatched.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("workflow: name is required")
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("workflow %s: at least one step is required", d.Name)
	}
	for name, step := range d.Steps {
		if step.Run == nil {
			return fmt.Errorf("workflow %s: step %q has no function", d.Name, name)
		}
	}
	return validateGraph(d.Steps)
}
