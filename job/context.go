package job

import "context"

type ctxKey struct{}

// NewContext returns a context carrying the job. The worker engine
// installs the pushed job before invoking its handler, so handler code
// (and the workflow driver) can recover the job identity.
func NewContext(ctx context.Context, j *Job) context.Context {
	return context.WithValue(ctx, ctxKey{}, j)
}

// FromContext returns the job the surrounding handler is executing.
// Returns false when the context does not come from a handler
// invocation.
func FromContext(ctx context.Context) (*Job, bool) {
	j, ok := ctx.Value(ctxKey{}).(*Job)
	return j, ok
}
