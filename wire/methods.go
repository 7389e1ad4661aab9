package wire

import (
	"encoding/json"

	"github.com/BaudehloBiz/planllama-go/job"
)

// ── Well-known methods ──────────────────────────────

const (
	// Sent once after connecting, before any other message.
	MethodAuth = "auth"

	// Client-initiated requests.
	MethodDispatch    = "job.dispatch"
	MethodSchedule    = "job.schedule"
	MethodStepResults = "workflow.results.get"
	MethodStoreStep   = "workflow.results.put"

	// Client-initiated events (no response expected).
	MethodRegisterWorker = "worker.register"
	MethodStarted        = "worker.started"
	MethodCompleted      = "worker.completed"

	// Server-initiated request: a work item pushed to a registered worker.
	MethodPush = "worker.push"

	// Server-initiated events carrying per-job outcome notifications.
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// Ack status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ── Request/Ack payloads ────────────────────────────

// AuthRequest is sent by clients to authenticate and negotiate the
// wire format for the rest of the session.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default), "msgpack"
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// DispatchRequest submits a new job.
type DispatchRequest struct {
	Name    string          `json:"name"`
	Data    json.RawMessage `json:"data,omitempty"`
	Options *job.Options    `json:"options,omitempty"`
}

// DispatchAck confirms (or rejects) a dispatch.
type DispatchAck struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ScheduleRequest registers a recurring dispatch under a cron pattern.
type ScheduleRequest struct {
	Name        string          `json:"name"`
	CronPattern string          `json:"cron_pattern"`
	Data        json.RawMessage `json:"data,omitempty"`
	Options     *job.Options    `json:"options,omitempty"`
}

// ScheduleAck confirms (or rejects) a schedule registration.
type ScheduleAck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RegisterWorker announces that this client handles jobs of the given name.
type RegisterWorker struct {
	JobName string         `json:"job_name"`
	Options *WorkerOptions `json:"options,omitempty"`
}

// WorkerOptions carries per-registration knobs interpreted by the server.
type WorkerOptions struct {
	// Concurrency caps how many jobs of this name the server pushes to
	// this client at once. Zero means the server default.
	Concurrency int `json:"concurrency,omitempty"`
}

// StartedReport tells the server a pushed job has begun executing.
type StartedReport struct {
	JobName string `json:"job_name"`
	JobID   string `json:"job_id"`
}

// CompletedReport tells the server a pushed job finished successfully.
type CompletedReport struct {
	JobName string          `json:"job_name"`
	JobID   string          `json:"job_id"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// WorkAck is the client's response to a pushed work item: the job's
// single outcome report.
type WorkAck struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// JobCompleted notifies a waiting dispatcher that a job succeeded.
type JobCompleted struct {
	JobID  string          `json:"job_id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// JobFailed notifies a waiting dispatcher that a job failed.
type JobFailed struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// StepResultsRequest fetches the stored step-result table for a job.
type StepResultsRequest struct {
	JobID string `json:"job_id"`
}

// StepResultsAck returns the stored step-result table, if any.
type StepResultsAck struct {
	Status      string                     `json:"status"`
	StepResults map[string]json.RawMessage `json:"step_results,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// StoreStepRequest persists one step result keyed by (job id, step name).
type StoreStepRequest struct {
	JobID    string          `json:"job_id"`
	StepName string          `json:"step_name"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// StoreStepAck confirms a step-result write.
type StoreStepAck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
