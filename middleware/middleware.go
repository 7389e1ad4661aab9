// Package middleware provides composable middleware for job handler
// execution. Middleware wraps handler calls synchronously and can modify
// execution (recover from panics, log, add tracing or metrics).
package middleware

import (
	"context"

	"github.com/BaudehloBiz/planllama-go/job"
)

// Handler is the terminal function that executes job logic and produces
// the job's result.
type Handler func(ctx context.Context, j *job.Job) (any, error)

// Middleware wraps a Handler with cross-cutting logic. Middleware MUST
// call next to continue the chain (unless short-circuiting on error).
type Middleware func(next Handler) Handler

// Chain wraps h in mws. Middleware are applied right-to-left: the first
// middleware in the list is the outermost wrapper.
//
// Example: Chain(h, logging, recover) executes as:
//
//	logging → recover → h
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
