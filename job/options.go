package job

import "time"

// Options configures per-dispatch behavior. The struct doubles as the wire
// shape sent inside a dispatch request; semantics beyond the deadline are
// the server's concern and zero values mean "use the server default".
type Options struct {
	// JobID overrides the server-assigned identifier.
	JobID string `json:"job_id,omitempty"`

	// Deadline is the execution budget in whole seconds.
	Deadline int64 `json:"deadline,omitempty"`

	// MaxRetries is the number of retry attempts after a failure.
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryDelay is the base delay between attempts, in whole seconds.
	RetryDelay int64 `json:"retry_delay,omitempty"`

	// RetryBackoff enables exponential growth of RetryDelay per attempt.
	RetryBackoff bool `json:"retry_backoff,omitempty"`

	// Priority determines queue ordering. Higher values run first.
	Priority int `json:"priority,omitempty"`

	// StartAfter delays the first attempt until the given time.
	StartAfter *time.Time `json:"start_after,omitempty"`

	// NotifyCompletion asks the server to emit per-job completion and
	// failure notifications. Set by DispatchAndWait; not part of the
	// public option surface.
	NotifyCompletion bool `json:"notify_completion,omitempty"`
}

// Option is a functional option for configuring a dispatch.
type Option func(*Options)

// WithJobID supplies the job identifier instead of letting the server
// assign one.
func WithJobID(id string) Option {
	return func(o *Options) {
		o.JobID = id
	}
}

// WithDeadline sets the maximum execution duration for the job, rounded
// down to whole seconds.
func WithDeadline(d time.Duration) Option {
	return func(o *Options) {
		o.Deadline = int64(d / time.Second)
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithRetryDelay sets the base delay between attempts, rounded down to
// whole seconds.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		o.RetryDelay = int64(d / time.Second)
	}
}

// WithRetryBackoff enables exponential backoff between retry attempts.
func WithRetryBackoff() Option {
	return func(o *Options) {
		o.RetryBackoff = true
	}
}

// WithPriority sets the job priority. Higher values are processed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithStartAfter schedules the first attempt at a specific time.
func WithStartAfter(t time.Time) Option {
	return func(o *Options) {
		o.StartAfter = &t
	}
}

// Build applies opts to a zero Options value.
func Build(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
