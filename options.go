package planllama

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/BaudehloBiz/planllama-go/backoff"
	"github.com/BaudehloBiz/planllama-go/channel"
	"github.com/BaudehloBiz/planllama-go/hooks"
	"github.com/BaudehloBiz/planllama-go/middleware"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger for the client and every
// component it wires up.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHook registers lifecycle hooks with the client's hook registry.
func WithHook(hs ...hooks.Hook) Option {
	return func(c *Client) {
		c.hookList = append(c.hookList, hs...)
	}
}

// WithMiddleware appends handler middleware, outermost first. The
// recover middleware always sits innermost, so user middleware
// observes a panic as an ordinary handler error.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.mws = append(c.mws, mws...)
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the client.
// When set, the observability metrics hook uses this provider instead
// of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.meterProvider = mp
	}
}

// WithToken sets the authentication token presented during the channel
// handshake. Only used by Dial.
func WithToken(token string) Option {
	return func(c *Client) {
		c.chOpts = append(c.chOpts, channel.WithToken(token))
	}
}

// WithFormat sets the wire format negotiated during the channel
// handshake: "json" (default) or "msgpack". Only used by Dial.
func WithFormat(format string) Option {
	return func(c *Client) {
		c.chOpts = append(c.chOpts, channel.WithFormat(format))
	}
}

// WithReconnect enables automatic redial after the connection drops.
// maxRedials caps the attempt count; zero means retry forever. A nil
// strategy uses backoff.DefaultStrategy. Only used by Dial.
func WithReconnect(maxRedials int, strategy backoff.Strategy) Option {
	return func(c *Client) {
		c.chOpts = append(c.chOpts, channel.WithReconnect(maxRedials, strategy))
	}
}
