package channel

import (
	"log/slog"

	"github.com/BaudehloBiz/planllama-go/backoff"
)

// Option configures a WebSocket channel.
type Option func(*WebSocket)

// WithToken sets the authentication token.
func WithToken(token string) Option {
	return func(c *WebSocket) { c.token = token }
}

// WithFormat sets the wire format for message encoding.
// Supported values: "json" (default), "msgpack".
func WithFormat(format string) Option {
	return func(c *WebSocket) { c.format = format }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *WebSocket) { c.logger = logger }
}

// WithReconnect enables automatic redial after the connection drops.
// maxRedials caps the attempt count; zero means retry forever. A nil
// strategy uses backoff.DefaultStrategy.
func WithReconnect(maxRedials int, strategy backoff.Strategy) Option {
	return func(c *WebSocket) {
		c.redial = true
		c.maxRedials = maxRedials
		c.strategy = strategy
	}
}
