package hooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BaudehloBiz/planllama-go/job"
)

// Named entry types pair a hook implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type jobActiveEntry struct {
	name string
	hook JobActive
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobTimedOutEntry struct {
	name string
	hook JobTimedOut
}

type workflowStartedEntry struct {
	name string
	hook WorkflowStarted
}

type workflowStepCompletedEntry struct {
	name string
	hook WorkflowStepCompleted
}

type workflowStepFailedEntry struct {
	name string
	hook WorkflowStepFailed
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type workflowFailedEntry struct {
	name string
	hook WorkflowFailed
}

type reconnectedEntry struct {
	name string
	hook Reconnected
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to
// them. It type-caches hooks at registration time so emit calls iterate
// only over hooks that implement the relevant interface.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	// Type-cached slices for each lifecycle event.
	jobActive             []jobActiveEntry
	jobCompleted          []jobCompletedEntry
	jobFailed             []jobFailedEntry
	jobTimedOut           []jobTimedOutEntry
	workflowStarted       []workflowStartedEntry
	workflowStepCompleted []workflowStepCompletedEntry
	workflowStepFailed    []workflowStepFailedEntry
	workflowCompleted     []workflowCompletedEntry
	workflowFailed        []workflowFailedEntry
	reconnected           []reconnectedEntry
	shutdown              []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event
// caches. Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if hk, ok := h.(JobActive); ok {
		r.jobActive = append(r.jobActive, jobActiveEntry{name, hk})
	}
	if hk, ok := h.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, hk})
	}
	if hk, ok := h.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, hk})
	}
	if hk, ok := h.(JobTimedOut); ok {
		r.jobTimedOut = append(r.jobTimedOut, jobTimedOutEntry{name, hk})
	}
	if hk, ok := h.(WorkflowStarted); ok {
		r.workflowStarted = append(r.workflowStarted, workflowStartedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowStepCompleted); ok {
		r.workflowStepCompleted = append(r.workflowStepCompleted, workflowStepCompletedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowStepFailed); ok {
		r.workflowStepFailed = append(r.workflowStepFailed, workflowStepFailedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, hk})
	}
	if hk, ok := h.(WorkflowFailed); ok {
		r.workflowFailed = append(r.workflowFailed, workflowFailedEntry{name, hk})
	}
	if hk, ok := h.(Reconnected); ok {
		r.reconnected = append(r.reconnected, reconnectedEntry{name, hk})
	}
	if hk, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, hk})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobActive notifies all hooks that implement JobActive.
func (r *Registry) EmitJobActive(ctx context.Context, j *job.Job) {
	for _, e := range r.jobActive {
		if err := e.hook.OnJobActive(ctx, j); err != nil {
			r.logHookError("OnJobActive", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all hooks that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all hooks that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobTimedOut notifies all hooks that implement JobTimedOut.
func (r *Registry) EmitJobTimedOut(ctx context.Context, j *job.Job, deadline time.Duration) {
	for _, e := range r.jobTimedOut {
		if err := e.hook.OnJobTimedOut(ctx, j, deadline); err != nil {
			r.logHookError("OnJobTimedOut", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Workflow event emitters
// ──────────────────────────────────────────────────

// EmitWorkflowStarted notifies all hooks that implement WorkflowStarted.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, workflow, jobID string) {
	for _, e := range r.workflowStarted {
		if err := e.hook.OnWorkflowStarted(ctx, workflow, jobID); err != nil {
			r.logHookError("OnWorkflowStarted", e.name, err)
		}
	}
}

// EmitWorkflowStepCompleted notifies all hooks that implement WorkflowStepCompleted.
func (r *Registry) EmitWorkflowStepCompleted(ctx context.Context, workflow, jobID, step string, result json.RawMessage) {
	for _, e := range r.workflowStepCompleted {
		if err := e.hook.OnWorkflowStepCompleted(ctx, workflow, jobID, step, result); err != nil {
			r.logHookError("OnWorkflowStepCompleted", e.name, err)
		}
	}
}

// EmitWorkflowStepFailed notifies all hooks that implement WorkflowStepFailed.
func (r *Registry) EmitWorkflowStepFailed(ctx context.Context, workflow, jobID, step string, stepErr error) {
	for _, e := range r.workflowStepFailed {
		if err := e.hook.OnWorkflowStepFailed(ctx, workflow, jobID, step, stepErr); err != nil {
			r.logHookError("OnWorkflowStepFailed", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all hooks that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, workflow, jobID string, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, workflow, jobID, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// EmitWorkflowFailed notifies all hooks that implement WorkflowFailed.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, workflow, jobID string, runErr error) {
	for _, e := range r.workflowFailed {
		if err := e.hook.OnWorkflowFailed(ctx, workflow, jobID, runErr); err != nil {
			r.logHookError("OnWorkflowFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitReconnected notifies all hooks that implement Reconnected.
func (r *Registry) EmitReconnected(ctx context.Context) {
	for _, e := range r.reconnected {
		if err := e.hook.OnReconnected(ctx); err != nil {
			r.logHookError("OnReconnected", e.name, err)
		}
	}
}

// EmitShutdown notifies all hooks that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the job.
func (r *Registry) logHookError(hook, hookName string, err error) {
	r.logger.Warn("lifecycle hook error",
		slog.String("event", hook),
		slog.String("hook", hookName),
		slog.String("error", err.Error()),
	)
}
