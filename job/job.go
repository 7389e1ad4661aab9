package job

import (
	"encoding/json"
	"time"
)

// State represents the lifecycle state of a job. States are owned by the
// server; the client only ever observes them on pushed work items and
// reports transitions it causes (active, completed, failed).
type State string

const (
	// StateCreated means the job is queued and waiting to run.
	StateCreated State = "created"
	// StateRetry means the job failed and is scheduled for another attempt.
	StateRetry State = "retry"
	// StateActive means a worker is currently executing the job.
	StateActive State = "active"
	// StateCompleted means the job finished successfully.
	StateCompleted State = "completed"
	// StateExpired means the job exceeded its deadline.
	StateExpired State = "expired"
	// StateCancelled means the job was explicitly cancelled.
	StateCancelled State = "cancelled"
	// StateFailed means the job failed and will not be retried.
	StateFailed State = "failed"
)

// DefaultDeadline is the execution deadline applied when a job does not
// carry one of its own.
const DefaultDeadline = 900 * time.Second

// Job is one unit of dispatched work. The server is the source of truth;
// the client never holds a Job beyond the scope of handling one push.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data,omitempty"`
	State      State           `json:"state,omitempty"`
	Priority   int             `json:"priority,omitempty"`
	RetryCount int             `json:"retry_count,omitempty"`
	LastError  string          `json:"last_error,omitempty"`

	// Deadline is the execution budget in whole seconds. Zero means the
	// engine default applies.
	Deadline int64 `json:"deadline,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

// EffectiveDeadline returns the execution budget as a duration,
// substituting the default when the job carries none.
func (j *Job) EffectiveDeadline() time.Duration {
	if j.Deadline <= 0 {
		return DefaultDeadline
	}

	return time.Duration(j.Deadline) * time.Second
}

// Terminal reports whether the state is one the server never leaves.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateExpired, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}
