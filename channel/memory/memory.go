// Package memory provides an in-process channel.Channel for tests and
// examples. Server behavior is scripted per request method, outbound
// events are recorded for inspection, and server-initiated traffic is
// injected through test helpers.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BaudehloBiz/planllama-go/channel"
	"github.com/BaudehloBiz/planllama-go/job"
	"github.com/BaudehloBiz/planllama-go/wire"
)

// ScriptFunc produces the server's response for one request. Returning
// an error simulates a protocol-level error message.
type ScriptFunc func(data json.RawMessage) (any, error)

// Call records one outbound message: the method and its JSON payload.
type Call struct {
	Method string
	Data   json.RawMessage
}

// Channel is an in-memory channel.Channel. The zero value is not
// usable; create one with New.
type Channel struct {
	mu           sync.Mutex
	scripts      map[string]ScriptFunc
	handlers     map[string]channel.RequestHandler
	events       map[string][]channel.EventHandler
	reconnectFns []func(context.Context)
	requests     []Call
	sent         []Call
	closed       bool
}

var _ channel.Channel = (*Channel)(nil)

// New creates an empty in-memory channel. Requests fail until their
// methods are scripted.
func New() *Channel {
	return &Channel{
		scripts:  make(map[string]ScriptFunc),
		handlers: make(map[string]channel.RequestHandler),
		events:   make(map[string][]channel.EventHandler),
	}
}

// Script installs the server's behavior for a request method.
func (c *Channel) Script(method string, fn ScriptFunc) {
	c.mu.Lock()
	c.scripts[method] = fn
	c.mu.Unlock()
}

// Request invokes the scripted behavior for the method and wraps its
// result in a response message.
func (c *Channel) Request(ctx context.Context, method string, data any) (*wire.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("memory: marshal request data: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, channel.ErrClosed
	}
	c.requests = append(c.requests, Call{Method: method, Data: raw})
	fn, ok := c.scripts[method]
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("memory: no script for method %s", method)
	}

	// Invoke outside the lock so scripts can emit events back into
	// the channel.
	result, scriptErr := fn(raw)
	if scriptErr != nil {
		return nil, fmt.Errorf("memory: %s: %w", method, scriptErr)
	}

	return wire.NewResponse(wire.NewMessageID(), result)
}

// Send records a fire-and-forget event.
func (c *Channel) Send(ctx context.Context, method string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("memory: marshal event data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return channel.ErrClosed
	}
	c.sent = append(c.sent, Call{Method: method, Data: raw})
	return nil
}

// Handle registers the handler for server-initiated requests.
func (c *Channel) Handle(method string, h channel.RequestHandler) {
	c.mu.Lock()
	c.handlers[method] = h
	c.mu.Unlock()
}

// OnEvent registers a handler for server-initiated events.
func (c *Channel) OnEvent(method string, h channel.EventHandler) {
	c.mu.Lock()
	c.events[method] = append(c.events[method], h)
	c.mu.Unlock()
}

// OnReconnect registers a reconnect callback.
func (c *Channel) OnReconnect(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.reconnectFns = append(c.reconnectFns, fn)
	c.mu.Unlock()
}

// Connected reports whether the channel is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close marks the channel closed.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// ── Test helpers ────────────────────────────────────

// PushWork delivers a work item to the registered push handler, as the
// server would, and returns the decoded outcome report.
func (c *Channel) PushWork(ctx context.Context, j *job.Job) (*wire.WorkAck, error) {
	c.mu.Lock()
	h, ok := c.handlers[wire.MethodPush]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory: no handler for %s", wire.MethodPush)
	}

	req, err := wire.NewRequest(wire.MethodPush, j)
	if err != nil {
		return nil, fmt.Errorf("memory: marshal work item: %w", err)
	}

	resp := h(ctx, req)
	if resp == nil {
		return nil, fmt.Errorf("memory: push handler returned no response")
	}
	if resp.Type == wire.TypeError {
		msg := "unknown error"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, fmt.Errorf("memory: push rejected: %s", msg)
	}

	var ack wire.WorkAck
	if unmarshalErr := json.Unmarshal(resp.Data, &ack); unmarshalErr != nil {
		return nil, fmt.Errorf("memory: decode work ack: %w", unmarshalErr)
	}
	return &ack, nil
}

// Emit delivers a server-initiated event to all registered handlers
// synchronously.
func (c *Channel) Emit(ctx context.Context, method string, data any) error {
	msg, err := wire.NewEvent(method, data)
	if err != nil {
		return fmt.Errorf("memory: marshal event: %w", err)
	}

	c.mu.Lock()
	hs := make([]channel.EventHandler, len(c.events[method]))
	copy(hs, c.events[method])
	c.mu.Unlock()

	for _, h := range hs {
		h(ctx, msg)
	}
	return nil
}

// EmitJobCompleted delivers a job success notification.
func (c *Channel) EmitJobCompleted(ctx context.Context, jobID string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("memory: marshal result: %w", err)
	}
	return c.Emit(ctx, wire.EventJobCompleted, wire.JobCompleted{JobID: jobID, Result: raw})
}

// EmitJobFailed delivers a job failure notification.
func (c *Channel) EmitJobFailed(ctx context.Context, jobID, errMsg string) error {
	return c.Emit(ctx, wire.EventJobFailed, wire.JobFailed{JobID: jobID, Error: errMsg})
}

// SimulateReconnect fires all reconnect callbacks in registration
// order, as the WebSocket channel does after a successful redial.
func (c *Channel) SimulateReconnect(ctx context.Context) {
	c.mu.Lock()
	fns := make([]func(context.Context), len(c.reconnectFns))
	copy(fns, c.reconnectFns)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// Requests returns a snapshot of recorded request calls.
func (c *Channel) Requests() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.requests))
	copy(out, c.requests)
	return out
}

// Sent returns a snapshot of recorded fire-and-forget events.
func (c *Channel) Sent() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentMethods returns just the method names of recorded events, in
// send order.
func (c *Channel) SentMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, call := range c.sent {
		out[i] = call.Method
	}
	return out
}
