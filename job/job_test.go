package job_test

import (
	"testing"
	"time"

	"github.com/BaudehloBiz/planllama-go/job"
)

func TestEffectiveDeadline(t *testing.T) {
	tests := []struct {
		name     string
		deadline int64
		want     time.Duration
	}{
		{"unset uses default", 0, 900 * time.Second},
		{"negative uses default", -5, 900 * time.Second},
		{"explicit", 30, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &job.Job{ID: "job-1", Name: "noop", Deadline: tt.deadline}
			if got := j.EffectiveDeadline(); got != tt.want {
				t.Errorf("EffectiveDeadline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := []job.State{job.StateCompleted, job.StateExpired, job.StateCancelled, job.StateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("state %q should be terminal", s)
		}
	}

	live := []job.State{job.StateCreated, job.StateRetry, job.StateActive}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("state %q should not be terminal", s)
		}
	}
}

func TestBuildOptions(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := job.Build(
		job.WithJobID("job-custom"),
		job.WithDeadline(90*time.Second),
		job.WithMaxRetries(4),
		job.WithRetryDelay(10*time.Second),
		job.WithRetryBackoff(),
		job.WithPriority(7),
		job.WithStartAfter(at),
	)

	if o.JobID != "job-custom" {
		t.Errorf("JobID = %q, want %q", o.JobID, "job-custom")
	}
	if o.Deadline != 90 {
		t.Errorf("Deadline = %d, want 90", o.Deadline)
	}
	if o.MaxRetries != 4 {
		t.Errorf("MaxRetries = %d, want 4", o.MaxRetries)
	}
	if o.RetryDelay != 10 {
		t.Errorf("RetryDelay = %d, want 10", o.RetryDelay)
	}
	if !o.RetryBackoff {
		t.Error("RetryBackoff should be set")
	}
	if o.Priority != 7 {
		t.Errorf("Priority = %d, want 7", o.Priority)
	}
	if o.StartAfter == nil || !o.StartAfter.Equal(at) {
		t.Errorf("StartAfter = %v, want %v", o.StartAfter, at)
	}
	if o.NotifyCompletion {
		t.Error("NotifyCompletion should default to false")
	}
}
