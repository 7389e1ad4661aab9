package planllama

import (
	"errors"

	"github.com/BaudehloBiz/planllama-go/worker"
	"github.com/BaudehloBiz/planllama-go/workflow"
)

var (
	// Lifecycle errors.
	ErrNotStarted      = errors.New("planllama: not started")
	ErrInvalidResponse = errors.New("planllama: invalid response from server")

	// ErrJobFailed is the settlement for a failure notification that
	// carries no error message of its own.
	ErrJobFailed = errors.New("planllama: Job failed")

	// Registration errors, re-exported from the packages that raise them
	// so callers can match with errors.Is against the root package alone.
	ErrNilHandler          = worker.ErrNilHandler
	ErrRecursiveDependency = workflow.ErrRecursiveDependency

	// ErrJobTimedOut is the failure reason reported to lifecycle hooks
	// when a job's deadline fires before its handler settles.
	ErrJobTimedOut = worker.ErrJobTimedOut
)
