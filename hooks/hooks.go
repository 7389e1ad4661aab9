package hooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaudehloBiz/planllama-go/job"
)

// Hook is the base interface all lifecycle hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobActive is called when a pushed job begins executing, after the
// started report has been sent and before any handler code runs.
type JobActive interface {
	OnJobActive(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a handler finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job's outcome is a failure, whether from a
// handler error, a panic, or the deadline firing.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobTimedOut is called when the deadline fires before the handler
// settles. It fires in addition to JobFailed, immediately before it.
type JobTimedOut interface {
	OnJobTimedOut(ctx context.Context, j *job.Job, deadline time.Duration) error
}

// ──────────────────────────────────────────────────
// Workflow lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowStarted is called when a workflow run driver begins.
type WorkflowStarted interface {
	OnWorkflowStarted(ctx context.Context, workflow, jobID string) error
}

// WorkflowStepCompleted is called after a workflow step settles
// successfully and its result has been merged into the run's table.
type WorkflowStepCompleted interface {
	OnWorkflowStepCompleted(ctx context.Context, workflow, jobID, step string, result json.RawMessage) error
}

// WorkflowStepFailed is called when a workflow step fails.
type WorkflowStepFailed interface {
	OnWorkflowStepFailed(ctx context.Context, workflow, jobID, step string, err error) error
}

// WorkflowCompleted is called after a workflow run resolves every step.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, workflow, jobID string, elapsed time.Duration) error
}

// WorkflowFailed is called when a workflow run fails.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, workflow, jobID string, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Reconnected is called after the channel re-establishes its connection
// and worker registrations have been re-asserted.
type Reconnected interface {
	OnReconnected(ctx context.Context) error
}

// Shutdown is called during graceful client shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
