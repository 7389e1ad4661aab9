package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc is a type-erased work handler: it receives the pushed
// job's raw JSON data and returns the result to report. The typed
// Definition[T] is converted to a HandlerFunc at registration time by
// closing over JSON unmarshal + the typed handler.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Options configures a worker registration. The server interprets
// these; the client only forwards them.
type Options struct {
	// Concurrency caps how many jobs of this name the server pushes
	// to this client at once. Zero means the server default.
	Concurrency int `json:"concurrency,omitempty"`
}

// Option mutates registration Options.
type Option func(*Options)

// WithConcurrency caps concurrent pushes for this registration.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// Registration pairs a job name with its handler and options.
type Registration struct {
	JobName string
	Handler HandlerFunc
	Opts    Options
}

// Registry maps job names to registrations and preserves registration
// order, which is also the order registrations are re-asserted to the
// server after a reconnect. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Registration
	order   []string
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Registration),
	}
}

// Add stores a registration. Re-registering an existing name replaces
// the handler but keeps the name's original position in the order.
func (r *Registry) Add(reg *Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[reg.JobName]; !exists {
		r.order = append(r.order, reg.JobName)
	}
	r.entries[reg.JobName] = reg
}

// Get returns the registration for the given job name.
func (r *Registry) Get(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// InOrder returns a snapshot of all registrations in registration
// order.
func (r *Registry) InOrder() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Names returns all registered job names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Definition is a typed work definition with a handler function.
// T is the job data type (must be JSON-serializable).
type Definition[T any] struct {
	// Name is the job name this handler serves.
	Name string

	// Handler processes the decoded job data and returns the result
	// to report.
	Handler func(ctx context.Context, input T) (any, error)

	// Opts configures the registration.
	Opts Options
}

// NewDefinition creates a typed work definition.
func NewDefinition[T any](name string, handler func(ctx context.Context, input T) (any, error), opts ...Option) *Definition[T] {
	def := &Definition[T]{
		Name:    name,
		Handler: handler,
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}

// RegisterDefinition registers a typed work definition with the engine.
// The generic handler is wrapped in a closure that JSON-unmarshals the
// job data into T before calling the typed handler.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T any](e *Engine, def *Definition[T]) error {
	if def.Handler == nil {
		return ErrNilHandler
	}
	handler := func(ctx context.Context, data json.RawMessage) (any, error) {
		var t T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, fmt.Errorf("unmarshal data for job %q: %w", def.Name, err)
			}
		}
		return def.Handler(ctx, t)
	}
	return e.register(&Registration{JobName: def.Name, Handler: handler, Opts: def.Opts})
}
