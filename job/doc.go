// Package job defines the client-side view of a PlanLlama job: the record
// shape the server pushes to workers, the lifecycle state vocabulary, and
// the options a caller can attach to a dispatch.
//
// # Job Record
//
// A [Job] is one unit of dispatched work. The server owns every record;
// the client receives one copy per push and never keeps it afterwards.
// States progress as:
//
//	created → active → completed
//	created → active → retry → active → ...
//	created → active → failed
//	created → active → expired
//	created → cancelled
//
// Fields of note:
//   - Data: opaque JSON payload, interpreted only by the handler
//   - Deadline: execution budget in whole seconds (zero = 900)
//   - RetryCount: attempts so far, maintained by the server
//
// # Dispatch Options
//
// Options ride along with a dispatch and are interpreted by the server:
//
//	c.Dispatch(ctx, "send-email", email,
//	    job.WithDeadline(2*time.Minute),
//	    job.WithMaxRetries(5),
//	    job.WithRetryBackoff(),
//	)
package job
