// Package hooks defines the lifecycle hook system for the PlanLlama client.
//
// Hooks are notified of lifecycle events observed client-side (a pushed
// job going active, completing, failing, or timing out, workflow runs
// and their steps settling, reconnects, shutdown) and can react to them
// by recording metrics, emitting webhooks, or writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing a Hook
//
//	type MyHook struct{}
//
//	func (h *MyHook) Name() string { return "my-hook" }
//
//	// Opt in to specific events by implementing their interfaces.
//	func (h *MyHook) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobActive]: a pushed job began executing
//   - [JobCompleted]: the handler finished successfully
//   - [JobFailed]: the handler failed (a timeout also fails the job)
//   - [JobTimedOut]: the deadline fired before the handler settled
//
// # Workflow Lifecycle Hooks
//
//   - [WorkflowStarted]: a workflow run driver began
//   - [WorkflowStepCompleted]: a step settled successfully
//   - [WorkflowStepFailed]: a step failed
//   - [WorkflowCompleted]: a run finished with a full result table
//   - [WorkflowFailed]: a run failed
//
// # Other Hooks
//
//   - [Reconnected]: the channel re-established its connection
//   - [Shutdown]: the client is shutting down gracefully
//
// Hook errors are logged and never propagated; a misbehaving hook cannot
// fail a job.
package hooks
