// Package channel defines the message transport between the client and
// the queue server, plus a WebSocket implementation of it.
//
// A Channel carries wire.Message envelopes in both directions. The
// client sends requests (and awaits correlated responses) and
// fire-and-forget events; the server sends its own requests (pushed
// work items) and events (per-job outcome notifications). Consumers
// register handlers for inbound traffic by method name.
package channel

import (
	"context"
	"errors"

	"github.com/BaudehloBiz/planllama-go/wire"
)

// ErrClosed is returned for operations on a closed channel.
var ErrClosed = errors.New("channel: closed")

// ErrConnectionLost is returned when the connection drops while a
// request is in flight. The request may or may not have reached the
// server.
var ErrConnectionLost = errors.New("channel: connection lost")

// RequestHandler processes a server-initiated request and returns the
// response message to write back. Implementations must not return nil.
type RequestHandler func(ctx context.Context, msg *wire.Message) *wire.Message

// EventHandler processes a server-initiated event. Events carry no
// response.
type EventHandler func(ctx context.Context, msg *wire.Message)

// Channel is a bidirectional message transport to the queue server.
// Implementations must be safe for concurrent use.
type Channel interface {
	// Request sends a request and blocks until the correlated response
	// arrives or ctx is done. A server error message is surfaced as a
	// non-nil error.
	Request(ctx context.Context, method string, data any) (*wire.Message, error)

	// Send emits a fire-and-forget event to the server.
	Send(ctx context.Context, method string, data any) error

	// Handle registers the handler for server-initiated requests with
	// the given method. At most one handler per method; the last
	// registration wins.
	Handle(method string, h RequestHandler)

	// OnEvent registers a handler for server-initiated events with the
	// given method. Multiple handlers may be registered; each event is
	// delivered to all of them.
	OnEvent(method string, h EventHandler)

	// OnReconnect registers a callback invoked after the channel
	// re-establishes a dropped connection. Callbacks run in
	// registration order.
	OnReconnect(fn func(ctx context.Context))

	// Connected reports whether the channel currently has a live
	// connection.
	Connected() bool

	// Close tears down the channel. In-flight requests fail with
	// ErrClosed.
	Close() error
}
