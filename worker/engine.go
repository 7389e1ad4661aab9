// Package worker provides the push-work execution engine: a registry
// of named handlers asserted to the server, and an Engine that runs
// pushed jobs through middleware under a deadline and reports exactly
// one outcome per job.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BaudehloBiz/planllama-go/channel"
	"github.com/BaudehloBiz/planllama-go/hooks"
	"github.com/BaudehloBiz/planllama-go/id"
	"github.com/BaudehloBiz/planllama-go/job"
	"github.com/BaudehloBiz/planllama-go/middleware"
	"github.com/BaudehloBiz/planllama-go/wire"
)

// ErrNilHandler is returned when registering a nil handler.
var ErrNilHandler = errors.New("planllama: handler function is required")

// ErrJobTimedOut is the failure reason reported through hooks when a
// job's deadline elapses before its handler settles. The text matches
// the reason a waiting dispatcher receives from the server.
var ErrJobTimedOut = errors.New("Job timed out")

// Engine executes work pushed by the server. Handlers are registered
// by job name; each registration is asserted to the server immediately
// when the engine is started (or on Register if already started) and
// re-asserted in registration order after every reconnect.
type Engine struct {
	ch       channel.Channel
	registry *Registry
	hooks    *hooks.Registry
	mws      []middleware.Middleware
	logger   *slog.Logger
	workerID id.WorkerID

	mu      sync.Mutex
	started bool

	// In-flight pushed jobs.
	wg       sync.WaitGroup
	active   map[string]context.CancelFunc
	activeMu sync.Mutex
}

// execOutcome is the handler's settlement: a result or an error.
type execOutcome struct {
	result any
	err    error
}

// NewEngine creates a worker engine on the given channel. Middleware
// wraps every handler; Recover is always installed innermost so a
// panicking handler settles as a failed outcome and user middleware
// observes it as an ordinary handler error.
func NewEngine(ch channel.Channel, hookReg *hooks.Registry, logger *slog.Logger, mws ...middleware.Middleware) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if hookReg == nil {
		hookReg = hooks.NewRegistry(logger)
	}

	all := make([]middleware.Middleware, 0, len(mws)+1)
	all = append(all, mws...)
	all = append(all, middleware.Recover(logger))

	return &Engine{
		ch:       ch,
		registry: NewRegistry(),
		hooks:    hookReg,
		mws:      all,
		logger:   logger,
		workerID: id.NewWorkerID(),
		active:   make(map[string]context.CancelFunc),
	}
}

// WorkerID returns the engine's unique worker identifier.
func (e *Engine) WorkerID() id.WorkerID { return e.workerID }

// Register stores a handler for the given job name. If the engine is
// already started, the registration is asserted to the server
// immediately.
func (e *Engine) Register(name string, h HandlerFunc, opts ...Option) error {
	if h == nil {
		return ErrNilHandler
	}
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	return e.register(&Registration{JobName: name, Handler: h, Opts: o})
}

func (e *Engine) register(reg *Registration) error {
	e.registry.Add(reg)

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		e.assert(context.Background(), reg)
	}
	return nil
}

// Start installs the push handler, asserts all registrations to the
// server in registration order, and arranges re-assertion after every
// reconnect.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	e.ch.Handle(wire.MethodPush, e.handlePush)
	e.ch.OnReconnect(func(ctx context.Context) {
		e.logger.Info("re-asserting worker registrations",
			slog.String("worker_id", e.workerID.String()),
			slog.Int("count", e.registry.Len()),
		)
		e.assertAll(ctx)
	})

	e.logger.Info("worker engine starting",
		slog.String("worker_id", e.workerID.String()),
		slog.Int("registrations", e.registry.Len()),
	)
	e.assertAll(ctx)
	return nil
}

// Stop waits for in-flight jobs to settle. If the context ends first,
// active jobs are cancelled.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = false
	e.mu.Unlock()

	e.logger.Info("worker engine stopping", slog.String("worker_id", e.workerID.String()))

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("worker engine stopped gracefully")
	case <-ctx.Done():
		e.logger.Warn("worker engine shutdown timed out, cancelling active jobs")
		e.cancelActive()
		e.wg.Wait()
	}

	return nil
}

// assertAll announces every registration to the server in registration
// order.
func (e *Engine) assertAll(ctx context.Context) {
	for _, reg := range e.registry.InOrder() {
		e.assert(ctx, reg)
	}
}

// assert announces one registration to the server.
func (e *Engine) assert(ctx context.Context, reg *Registration) {
	msg := wire.RegisterWorker{JobName: reg.JobName}
	if reg.Opts.Concurrency > 0 {
		msg.Options = &wire.WorkerOptions{Concurrency: reg.Opts.Concurrency}
	}
	if err := e.ch.Send(ctx, wire.MethodRegisterWorker, msg); err != nil {
		e.logger.Warn("failed to register worker with server",
			slog.String("job_name", reg.JobName),
			slog.String("error", err.Error()),
		)
	}
}

// handlePush processes one pushed work item and returns its single
// outcome report.
func (e *Engine) handlePush(ctx context.Context, msg *wire.Message) *wire.Message {
	var j job.Job
	if err := json.Unmarshal(msg.Data, &j); err != nil {
		return wire.NewError(msg.ID, wire.ErrCodeBadRequest, "invalid work item: "+err.Error())
	}

	reg, ok := e.registry.Get(j.Name)
	if !ok {
		// Work this client never asked for: report failure without a
		// started notification and without lifecycle hooks.
		e.logger.Warn("work pushed for unregistered job name",
			slog.String("job_id", j.ID),
			slog.String("job_name", j.Name),
		)
		return e.ack(msg.ID, wire.WorkAck{
			Status: wire.StatusError,
			Error:  "No handler registered for job: " + j.Name,
		})
	}

	return e.execute(ctx, msg.ID, &j, reg)
}

// execute runs one job: started notification, hook, handler under a
// deadline, and exactly one outcome report. Whichever settles first,
// handler or deadline, wins; the loser's outcome is discarded.
func (e *Engine) execute(ctx context.Context, correlID string, j *job.Job, reg *Registration) *wire.Message {
	now := time.Now().UTC()
	j.State = job.StateActive
	j.StartedAt = &now

	if err := e.ch.Send(ctx, wire.MethodStarted, wire.StartedReport{JobName: j.Name, JobID: j.ID}); err != nil {
		e.logger.Warn("failed to report job started",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
	e.hooks.EmitJobActive(ctx, j)

	deadline := j.EffectiveDeadline()
	execCtx, cancel := context.WithTimeout(job.NewContext(ctx, j), deadline)
	e.track(j.ID, cancel)
	defer func() {
		e.untrack(j.ID)
		cancel()
	}()

	chained := middleware.Chain(func(hctx context.Context, hj *job.Job) (any, error) {
		return reg.Handler(hctx, hj.Data)
	}, e.mws...)

	start := time.Now()
	outcome := make(chan execOutcome, 1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		result, err := chained(execCtx, j)
		outcome <- execOutcome{result: result, err: err}
	}()

	select {
	case out := <-outcome:
		if out.err != nil {
			// A handler that returns promptly on ctx expiry still
			// settles as a timeout.
			if errors.Is(out.err, context.DeadlineExceeded) && execCtx.Err() != nil {
				return e.settleTimeout(ctx, correlID, j, deadline, nil)
			}
			return e.settleFailure(ctx, correlID, j, out.err)
		}
		return e.settleSuccess(ctx, correlID, j, out.result, time.Since(start))
	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return e.settleTimeout(ctx, correlID, j, deadline, outcome)
		}
		return e.settleFailure(ctx, correlID, j, execCtx.Err())
	}
}

// settleSuccess reports a completed job: completed notification, hook,
// and a success ack carrying the result.
func (e *Engine) settleSuccess(ctx context.Context, correlID string, j *job.Job, result any, elapsed time.Duration) *wire.Message {
	raw, err := marshalResult(result)
	if err != nil {
		return e.settleFailure(ctx, correlID, j, fmt.Errorf("marshal result for job %q: %w", j.Name, err))
	}

	now := time.Now().UTC()
	j.State = job.StateCompleted
	j.CompletedAt = &now

	if sendErr := e.ch.Send(ctx, wire.MethodCompleted, wire.CompletedReport{
		JobName: j.Name,
		JobID:   j.ID,
		Result:  raw,
	}); sendErr != nil {
		e.logger.Warn("failed to report job completed",
			slog.String("job_id", j.ID),
			slog.String("error", sendErr.Error()),
		)
	}
	e.hooks.EmitJobCompleted(ctx, j, elapsed)

	return e.ack(correlID, wire.WorkAck{Status: wire.StatusSuccess, Result: raw})
}

// settleFailure reports a failed job: hook and an error ack.
func (e *Engine) settleFailure(ctx context.Context, correlID string, j *job.Job, handlerErr error) *wire.Message {
	now := time.Now().UTC()
	j.State = job.StateFailed
	j.FailedAt = &now
	j.LastError = handlerErr.Error()

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID),
		slog.String("job_name", j.Name),
		slog.String("error", handlerErr.Error()),
	)
	e.hooks.EmitJobFailed(ctx, j, handlerErr)

	return e.ack(correlID, wire.WorkAck{Status: wire.StatusError, Error: handlerErr.Error()})
}

// settleTimeout reports a job whose deadline elapsed. If the handler
// is still running its eventual outcome is drained and discarded.
func (e *Engine) settleTimeout(ctx context.Context, correlID string, j *job.Job, deadline time.Duration, outcome <-chan execOutcome) *wire.Message {
	errMsg := fmt.Sprintf("job %s timed out after %ds", j.Name, int(deadline/time.Second))

	now := time.Now().UTC()
	j.State = job.StateExpired
	j.FailedAt = &now
	j.LastError = errMsg

	e.logger.Warn("job timed out",
		slog.String("job_id", j.ID),
		slog.String("job_name", j.Name),
		slog.Duration("deadline", deadline),
	)

	if outcome != nil {
		go func() {
			out := <-outcome
			e.logger.Debug("discarding handler outcome settled after deadline",
				slog.String("job_id", j.ID),
				slog.String("job_name", j.Name),
				slog.Bool("succeeded", out.err == nil),
			)
		}()
	}

	e.hooks.EmitJobTimedOut(ctx, j, deadline)
	e.hooks.EmitJobFailed(ctx, j, ErrJobTimedOut)

	return e.ack(correlID, wire.WorkAck{Status: wire.StatusError, Error: errMsg})
}

// ack wraps a WorkAck in a response message.
func (e *Engine) ack(correlID string, ack wire.WorkAck) *wire.Message {
	resp, err := wire.NewResponse(correlID, ack)
	if err != nil {
		return wire.NewError(correlID, wire.ErrCodeInternal, "marshal ack: "+err.Error())
	}
	return resp
}

// marshalResult encodes a handler result for the wire. Raw JSON passes
// through untouched; nil stays empty.
func marshalResult(result any) (json.RawMessage, error) {
	switch v := result.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func (e *Engine) track(jobID string, cancel context.CancelFunc) {
	e.activeMu.Lock()
	e.active[jobID] = cancel
	e.activeMu.Unlock()
}

func (e *Engine) untrack(jobID string) {
	e.activeMu.Lock()
	delete(e.active, jobID)
	e.activeMu.Unlock()
}

func (e *Engine) cancelActive() {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	for jobID, cancel := range e.active {
		e.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
