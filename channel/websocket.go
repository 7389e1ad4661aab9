package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/BaudehloBiz/planllama-go/backoff"
	"github.com/BaudehloBiz/planllama-go/wire"
)

// authTimeout bounds how long Dial waits for the server's auth response.
const authTimeout = 10 * time.Second

// WebSocket is a Channel over a WebSocket connection. It authenticates
// with a token on connect, negotiates the wire format, correlates
// responses to requests by message id, routes server-initiated requests
// and events to registered handlers, and optionally redials dropped
// connections with backoff.
type WebSocket struct {
	url    string
	token  string
	format string
	logger *slog.Logger

	// Reconnection.
	redial     bool
	maxRedials int
	strategy   backoff.Strategy

	// Connection state.
	conn      net.Conn
	writeMu   sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool
	sessionID string
	codec     wire.Codec

	// Request-response correlation.
	pending sync.Map // message ID → chan *wire.Message

	// Inbound routing.
	mu           sync.RWMutex
	handlers     map[string]RequestHandler
	events       map[string][]EventHandler
	reconnectFns []func(context.Context)
}

var _ Channel = (*WebSocket)(nil)

// Dial connects to a queue server and authenticates.
func Dial(url string, opts ...Option) (*WebSocket, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext connects to a queue server with a context.
func DialContext(ctx context.Context, url string, opts ...Option) (*WebSocket, error) {
	c := &WebSocket{
		url:      url,
		format:   wire.CodecNameJSON,
		logger:   slog.Default(),
		codec:    wire.GetCodec(wire.CodecNameJSON),
		handlers: make(map[string]RequestHandler),
		events:   make(map[string][]EventHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("channel: dial: %w", err)
	}

	// Start the read loop.
	go c.readLoop()

	return c, nil
}

// connect establishes the WebSocket connection and performs the auth
// handshake. The auth exchange is always JSON; the negotiated codec
// applies to everything after it. It reads the auth response directly
// since the read loop is not running yet.
func (c *WebSocket) connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	authMsg, marshalErr := wire.NewRequest(wire.MethodAuth, wire.AuthRequest{
		Token:  c.token,
		Format: c.format,
	})
	if marshalErr != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth request: %w", marshalErr)
	}

	authData, encErr := json.Marshal(authMsg)
	if encErr != nil {
		_ = conn.Close()
		return fmt.Errorf("encode auth request: %w", encErr)
	}
	if writeErr := wsutil.WriteClientText(conn, authData); writeErr != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth request: %w", writeErr)
	}

	// Read the auth response directly from the WebSocket. The read
	// loop cannot be used here because it has not started yet.
	type readResult struct {
		resp *wire.Message
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, readErr := wsutil.ReadServerText(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		var msg wire.Message
		if unmarshalErr := json.Unmarshal(data, &msg); unmarshalErr != nil {
			resultCh <- readResult{err: fmt.Errorf("unmarshal auth response: %w", unmarshalErr)}
			return
		}
		resultCh <- readResult{resp: &msg}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return result.err
		}
		resp := result.resp
		if resp.Type == wire.TypeError {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return fmt.Errorf("auth failed: %s", msg)
		}

		var authResp wire.AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := json.Unmarshal(resp.Data, &authResp); unmarshalErr != nil {
				c.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}

		c.writeMu.Lock()
		c.conn = conn
		c.sessionID = authResp.SessionID
		c.codec = wire.GetCodec(authResp.Format)
		c.writeMu.Unlock()
		c.connected.Store(true)

		c.logger.Info("channel connected",
			slog.String("session_id", authResp.SessionID),
			slog.String("format", c.codec.Name()),
		)
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-time.After(authTimeout):
		_ = conn.Close()
		return fmt.Errorf("auth timeout")
	}
}

// readLoop reads messages from the WebSocket and routes them.
func (c *WebSocket) readLoop() {
	conn, codec := c.current()
	for {
		if c.closed.Load() {
			return
		}

		data, err := c.readData(conn, codec)
		if err != nil {
			c.connected.Store(false)
			if c.closed.Load() {
				return
			}
			c.logger.Warn("channel read error", slog.String("error", err.Error()))
			// In-flight requests cannot be correlated across a new
			// connection; fail them now.
			c.failPending()
			if c.redial {
				c.tryRedial()
			}
			return
		}

		msg, decErr := codec.Decode(data)
		if decErr != nil {
			c.logger.Warn("channel: invalid message", slog.String("error", decErr.Error()))
			continue
		}

		c.route(msg)
	}
}

// route delivers one inbound message to the matching consumer.
func (c *WebSocket) route(msg *wire.Message) {
	switch msg.Type {
	case wire.TypeResponse, wire.TypeError:
		// Correlate with pending request.
		if val, ok := c.pending.Load(msg.CorrelID); ok {
			ch := val.(chan *wire.Message) //nolint:errcheck // pending map always stores chan *wire.Message
			select {
			case ch <- msg:
			default:
			}
		}
	case wire.TypeRequest:
		c.mu.RLock()
		h, ok := c.handlers[msg.Method]
		c.mu.RUnlock()
		if !ok {
			errMsg := wire.NewError(msg.ID, wire.ErrCodeMethodNotFound, "unknown method: "+msg.Method)
			if writeErr := c.writeMessage(errMsg); writeErr != nil {
				c.logger.Warn("channel: write error response", slog.String("error", writeErr.Error()))
			}
			return
		}
		// Handle off the read loop so a slow handler cannot stall
		// inbound traffic.
		go func() {
			resp := h(context.Background(), msg)
			if resp == nil {
				resp = wire.NewError(msg.ID, wire.ErrCodeInternal, "handler returned no response")
			}
			if writeErr := c.writeMessage(resp); writeErr != nil {
				c.logger.Warn("channel: write response", slog.String("error", writeErr.Error()))
			}
		}()
	case wire.TypeEvent:
		c.mu.RLock()
		hs := make([]EventHandler, len(c.events[msg.Method]))
		copy(hs, c.events[msg.Method])
		c.mu.RUnlock()
		if len(hs) == 0 {
			return
		}
		go func() {
			for _, h := range hs {
				h(context.Background(), msg)
			}
		}()
	case wire.TypePing:
		pong := &wire.Message{
			ID:        wire.NewMessageID(),
			Type:      wire.TypePong,
			CorrelID:  msg.ID,
			Timestamp: time.Now().UTC(),
		}
		if writeErr := c.writeMessage(pong); writeErr != nil {
			c.logger.Warn("channel: write pong", slog.String("error", writeErr.Error()))
		}
	case wire.TypePong:
		// Ignore.
	}
}

// tryRedial reconnects with backoff, re-runs reconnect callbacks, and
// restarts the read loop.
func (c *WebSocket) tryRedial() {
	strategy := c.strategy
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}

	for attempt := 1; ; attempt++ {
		if c.closed.Load() {
			return
		}
		if c.maxRedials > 0 && attempt > c.maxRedials {
			c.logger.Error("channel: max redial attempts reached")
			return
		}

		delay := strategy.Delay(attempt)
		c.logger.Info("channel reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		if err := c.connect(context.Background()); err != nil {
			c.logger.Warn("channel reconnect failed", slog.String("error", err.Error()))
			continue
		}

		c.logger.Info("channel reconnected")
		go c.readLoop()

		c.mu.RLock()
		fns := make([]func(context.Context), len(c.reconnectFns))
		copy(fns, c.reconnectFns)
		c.mu.RUnlock()
		for _, fn := range fns {
			fn(context.Background())
		}
		return
	}
}

// Request sends a request message and waits for the correlated response.
func (c *WebSocket) Request(ctx context.Context, method string, data any) (*wire.Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	msg, err := wire.NewRequest(method, data)
	if err != nil {
		return nil, fmt.Errorf("channel: marshal request data: %w", err)
	}

	respCh := make(chan *wire.Message, 1)
	c.pending.Store(msg.ID, respCh)
	defer c.pending.Delete(msg.ID)

	if writeErr := c.writeMessage(msg); writeErr != nil {
		return nil, writeErr
	}

	select {
	case resp := <-respCh:
		if resp == nil {
			if c.closed.Load() {
				return nil, ErrClosed
			}
			return nil, ErrConnectionLost
		}
		if resp.Type == wire.TypeError {
			errMsg := "unknown error"
			if resp.Error != nil {
				errMsg = resp.Error.Message
			}
			return nil, fmt.Errorf("channel: %s: %s", method, errMsg)
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send emits a fire-and-forget event message.
func (c *WebSocket) Send(ctx context.Context, method string, data any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := wire.NewEvent(method, data)
	if err != nil {
		return fmt.Errorf("channel: marshal event data: %w", err)
	}
	return c.writeMessage(msg)
}

// Handle registers the handler for server-initiated requests.
func (c *WebSocket) Handle(method string, h RequestHandler) {
	c.mu.Lock()
	c.handlers[method] = h
	c.mu.Unlock()
}

// OnEvent registers a handler for server-initiated events.
func (c *WebSocket) OnEvent(method string, h EventHandler) {
	c.mu.Lock()
	c.events[method] = append(c.events[method], h)
	c.mu.Unlock()
}

// OnReconnect registers a callback invoked after reconnection.
func (c *WebSocket) OnReconnect(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.reconnectFns = append(c.reconnectFns, fn)
	c.mu.Unlock()
}

// Connected reports whether the channel has a live connection.
func (c *WebSocket) Connected() bool {
	return c.connected.Load() && !c.closed.Load()
}

// SessionID returns the session ID assigned by the server.
func (c *WebSocket) SessionID() string {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sessionID
}

// Close closes the channel connection.
func (c *WebSocket) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}
	c.connected.Store(false)
	c.failPending()

	c.writeMu.Lock()
	conn := c.conn
	c.writeMu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// failPending resolves every in-flight request with a nil message,
// which Request translates to ErrClosed or ErrConnectionLost.
func (c *WebSocket) failPending() {
	c.pending.Range(func(key, val any) bool {
		ch := val.(chan *wire.Message) //nolint:errcheck // pending map always stores chan *wire.Message
		select {
		case ch <- nil:
		default:
		}
		c.pending.Delete(key)
		return true
	})
}

// current returns the live connection and codec under the write lock.
func (c *WebSocket) current() (net.Conn, wire.Codec) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn, c.codec
}

// readData reads one WebSocket message using the negotiated framing.
// JSON travels in text frames, msgpack in binary frames.
func (c *WebSocket) readData(conn net.Conn, codec wire.Codec) ([]byte, error) {
	if codec.Name() == wire.CodecNameMsgpack {
		return wsutil.ReadServerBinary(conn)
	}
	return wsutil.ReadServerText(conn)
}

// writeMessage encodes and sends a message over the WebSocket.
func (c *WebSocket) writeMessage(msg *wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return ErrConnectionLost
	}

	data, err := c.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("channel: encode message: %w", err)
	}
	if c.codec.Name() == wire.CodecNameMsgpack {
		return wsutil.WriteClientBinary(c.conn, data)
	}
	return wsutil.WriteClientText(c.conn, data)
}
