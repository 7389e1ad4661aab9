package planllama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/BaudehloBiz/planllama-go/channel"
	"github.com/BaudehloBiz/planllama-go/hooks"
	"github.com/BaudehloBiz/planllama-go/job"
	"github.com/BaudehloBiz/planllama-go/middleware"
	"github.com/BaudehloBiz/planllama-go/observability"
	"github.com/BaudehloBiz/planllama-go/worker"
	"github.com/BaudehloBiz/planllama-go/workflow"
)

// The orchestrator dispatches step jobs back through the client.
var _ workflow.Dispatcher = (*Client)(nil)

// Client is a PlanLlama client: a job dispatcher, a worker engine, and
// a workflow orchestrator sharing one server channel. Methods are safe
// for concurrent use.
type Client struct {
	ch     channel.Channel
	logger *slog.Logger
	hooks  *hooks.Registry
	correl *correlator
	engine *worker.Engine
	orch   *workflow.Orchestrator

	// Collected by options, consumed during construction.
	hookList      []hooks.Hook
	mws           []middleware.Middleware
	chOpts        []channel.Option
	meterProvider metric.MeterProvider

	mu      sync.Mutex
	started bool
}

// New creates a client on an existing channel. Use Dial to connect
// over WebSocket in one call.
func New(ch channel.Channel, opts ...Option) *Client {
	c := newClient(opts...)
	c.bind(ch)
	return c
}

// Dial connects to a PlanLlama server over WebSocket and returns a
// client on the new channel. The client still needs Start.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := newClient(opts...)

	chOpts := append([]channel.Option{channel.WithLogger(c.logger)}, c.chOpts...)
	ws, err := channel.DialContext(ctx, url, chOpts...)
	if err != nil {
		return nil, err
	}

	c.bind(ws)
	return c, nil
}

func newClient(opts ...Option) *Client {
	c := &Client{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	c.hooks = hooks.NewRegistry(c.logger)
	for _, h := range c.hookList {
		c.hooks.Register(h)
	}

	// Register the observability metrics hook.
	var obsHook *observability.MetricsHook
	if c.meterProvider != nil {
		meter := c.meterProvider.Meter("github.com/BaudehloBiz/planllama-go/observability")
		obsHook = observability.NewMetricsHookWithMeter(meter)
	} else {
		obsHook = observability.NewMetricsHook()
	}
	c.hooks.Register(obsHook)

	c.correl = newCorrelator(c.logger)
	return c
}

func (c *Client) bind(ch channel.Channel) {
	c.ch = ch
	c.engine = worker.NewEngine(ch, c.hooks, c.logger, c.mws...)
	c.orch = workflow.NewOrchestrator(c, c.hooks, c.logger)
}

// Start subscribes to outcome notifications and starts the worker
// engine, asserting every registration to the server. Start is
// idempotent.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.correl.bind(c.ch)
	if err := c.engine.Start(ctx); err != nil {
		return err
	}
	// Registered after the engine's reconnect callback so hooks observe
	// a reconnect only once registrations are re-asserted.
	c.ch.OnReconnect(func(ctx context.Context) {
		c.hooks.EmitReconnected(ctx)
	})

	c.started = true
	c.logger.Info("planllama client started")
	return nil
}

// Stop drains in-flight work, emits the shutdown hook, and closes the
// channel. Handlers keep their dispatch capability until the drain
// finishes; if ctx ends first, remaining jobs are cancelled.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.engine.Stop(ctx)
	c.hooks.EmitShutdown(ctx)

	c.mu.Lock()
	c.started = false
	c.mu.Unlock()

	if cerr := c.ch.Close(); cerr != nil && err == nil {
		err = cerr
	}

	c.logger.Info("planllama client stopped")
	return err
}

func (c *Client) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Hooks returns the lifecycle hook registry.
func (c *Client) Hooks() *hooks.Registry { return c.hooks }

// Register registers a handler for the given job name. The
// registration is asserted to the server immediately when the client
// is started, and re-asserted after every reconnect.
func (c *Client) Register(name string, h worker.HandlerFunc, opts ...worker.Option) error {
	return c.engine.Register(name, h, opts...)
}

// Register registers a typed work definition with the client.
func Register[T any](c *Client, def *worker.Definition[T]) error {
	return worker.RegisterDefinition(c.engine, def)
}

// Workflow registers a workflow definition: one worker handler per
// step named "<workflow>/<step>", plus the run driver under the
// workflow's own name. The graph is validated before anything is
// registered, so a malformed definition never reaches the server.
func (c *Client) Workflow(def *workflow.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	// Sorted for a stable registration order.
	steps := make([]string, 0, len(def.Steps))
	for name := range def.Steps {
		steps = append(steps, name)
	}
	sort.Strings(steps)

	for _, stepName := range steps {
		run := def.Steps[stepName].Run
		name := stepName
		err := c.engine.Register(def.Name+"/"+stepName, func(ctx context.Context, data json.RawMessage) (any, error) {
			var results workflow.Results
			if len(data) > 0 {
				if err := json.Unmarshal(data, &results); err != nil {
					return nil, fmt.Errorf("decode step input for %q: %w", name, err)
				}
			}
			return run(ctx, results)
		})
		if err != nil {
			return err
		}
	}

	// The driver runs the orchestrator under the pushed job's id, which
	// scopes the run's step-result table.
	return c.engine.Register(def.Name, func(ctx context.Context, _ json.RawMessage) (any, error) {
		j, ok := job.FromContext(ctx)
		if !ok {
			return nil, fmt.Errorf("workflow %s: no job in context", def.Name)
		}
		return c.orch.Run(ctx, def, j.ID)
	})
}
