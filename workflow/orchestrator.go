package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/BaudehloBiz/planllama-go/hooks"
	"github.com/BaudehloBiz/planllama-go/job"
)

// persistTimeout bounds each fire-and-forget step-result write.
const persistTimeout = 30 * time.Second

// Dispatcher is the client capability the orchestrator runs on:
// dispatch-and-await for step jobs, plus the server-side step-result
// table. Implemented by the root planllama client.
type Dispatcher interface {
	// DispatchAndWait dispatches a job and blocks until the server
	// reports its outcome, returning the job's result.
	DispatchAndWait(ctx context.Context, name string, data any, opts ...job.Option) (json.RawMessage, error)

	// StepResults fetches the stored step-result table for a job.
	StepResults(ctx context.Context, jobID string) (map[string]json.RawMessage, error)

	// StoreStepResult persists one step result keyed by (job id, step).
	StoreStepResult(ctx context.Context, jobID, step string, result json.RawMessage) error
}

// Orchestrator drives workflow runs: per-run graph validation, resume
// from the stored result table, and frontier-at-a-time step dispatch.
type Orchestrator struct {
	dispatcher Dispatcher
	hooks      *hooks.Registry
	logger     *slog.Logger
}

// NewOrchestrator creates an orchestrator on the given dispatcher.
func NewOrchestrator(d Dispatcher, hookReg *hooks.Registry, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if hookReg == nil {
		hookReg = hooks.NewRegistry(logger)
	}
	return &Orchestrator{
		dispatcher: d,
		hooks:      hookReg,
		logger:     logger,
	}
}

// Run executes one workflow run scoped to the given job id and returns
// the full step-result table. Already-persisted step results are never
// re-executed, which is what makes a retried workflow job resume
// instead of starting over.
func (o *Orchestrator) Run(ctx context.Context, def *Definition, jobID string) (Results, error) {
	start := time.Now()
	o.hooks.EmitWorkflowStarted(ctx, def.Name, jobID)

	table, err := o.run(ctx, def, jobID)
	if err != nil {
		o.hooks.EmitWorkflowFailed(ctx, def.Name, jobID, err)
		return nil, err
	}

	o.hooks.EmitWorkflowCompleted(ctx, def.Name, jobID, time.Since(start))
	return table, nil
}

func (o *Orchestrator) run(ctx context.Context, def *Definition, jobID string) (Results, error) {
	// No step is dispatched unless the whole graph is sound.
	if err := def.Validate(); err != nil {
		return nil, err
	}

	stored, err := o.dispatcher.StepResults(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: fetch step results: %w", def.Name, err)
	}

	resolved := make(Results, len(def.Steps))
	remaining := make(map[string]Step, len(def.Steps))
	for name, step := range def.Steps {
		if raw, ok := stored[name]; ok {
			resolved[name] = raw
			o.logger.Debug("skipping resolved step",
				slog.String("workflow", def.Name),
				slog.String("job_id", jobID),
				slog.String("step", name),
			)
			continue
		}
		remaining[name] = step
	}

	var mu sync.Mutex
	for len(remaining) > 0 {
		frontier := nextFrontier(remaining, resolved)

		o.logger.Debug("dispatching step frontier",
			slog.String("workflow", def.Name),
			slog.String("job_id", jobID),
			slog.Int("steps", len(frontier)),
		)

		// Every step in the wave sees the same table; merges land
		// before the next wave is computed.
		input := resolved.clone()

		g, gctx := errgroup.WithContext(ctx)
		for _, name := range frontier {
			stepName := name
			g.Go(func() error {
				raw, stepErr := o.dispatcher.DispatchAndWait(gctx, def.Name+"/"+stepName, input)
				if stepErr != nil {
					o.hooks.EmitWorkflowStepFailed(ctx, def.Name, jobID, stepName, stepErr)
					return fmt.Errorf("workflow %s step %q: %w", def.Name, stepName, stepErr)
				}

				mu.Lock()
				resolved[stepName] = raw
				mu.Unlock()

				o.persist(def.Name, jobID, stepName, raw)
				o.hooks.EmitWorkflowStepCompleted(ctx, def.Name, jobID, stepName, raw)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, name := range frontier {
			delete(remaining, name)
		}
	}

	return resolved, nil
}

// nextFrontier returns every remaining step whose needs are all
// resolved. After Validate passes, a non-empty remaining set always
// yields a non-empty frontier.
func nextFrontier(remaining map[string]Step, resolved Results) []string {
	frontier := make([]string, 0, len(remaining))
	for name, step := range remaining {
		eligible := true
		for _, dep := range step.Needs {
			if !resolved.Has(dep) {
				eligible = false
				break
			}
		}
		if eligible {
			frontier = append(frontier, name)
		}
	}
	return frontier
}

// persist writes one settled step result to the server without
// blocking the frontier loop. Failures are logged; the result is still
// in the run's table, so only a later resume would re-execute the step.
func (o *Orchestrator) persist(workflow, jobID, step string, result json.RawMessage) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := o.dispatcher.StoreStepResult(ctx, jobID, step, result); err != nil {
			o.logger.Warn("failed to persist step result",
				slog.String("workflow", workflow),
				slog.String("job_id", jobID),
				slog.String("step", step),
				slog.String("error", err.Error()),
			)
		}
	}()
}
