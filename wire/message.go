// Package wire implements the PlanLlama wire protocol: a message-based
// protocol spoken between the client and the queue server, transported
// over WebSocket. Every exchange is a Message envelope; request frames
// carry a correlation id that the matching response echoes back.
package wire

import (
	"encoding/json"
	"time"

	"github.com/BaudehloBiz/planllama-go/id"
)

// MessageType identifies the envelope category.
type MessageType string

const (
	TypeRequest  MessageType = "request"
	TypeResponse MessageType = "response"
	TypeEvent    MessageType = "event"
	TypeError    MessageType = "error"
	TypePing     MessageType = "ping"
	TypePong     MessageType = "pong"
)

// Message is the protocol envelope. Every message exchanged with the
// server is a Message.
type Message struct {
	// ID uniquely identifies this message.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the message.
	Type MessageType `json:"type" msgpack:"type"`

	// Method names the operation for request and event messages
	// (e.g., "job.dispatch").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Data carries the method-specific payload, always JSON-encoded
	// regardless of the envelope codec.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error messages.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timestamp records when this message was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in a response or error message.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeConflict       = 409
	ErrCodeInternal       = 500
)

// NewRequest creates a request message. The returned message's ID is the
// correlation key the response will echo.
func NewRequest(method string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        NewMessageID(),
		Type:      TypeRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponse creates a response to the request identified by correlID.
func NewResponse(correlID string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        NewMessageID(),
		Type:      TypeResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewError creates an error response to the request identified by correlID.
func NewError(correlID string, code int, message string) *Message {
	return &Message{
		ID:       NewMessageID(),
		Type:     TypeError,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEvent creates a fire-and-forget event message.
func NewEvent(method string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        NewMessageID(),
		Type:      TypeEvent,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewMessageID returns a new unique message id.
func NewMessageID() string {
	return id.NewMessageID().String()
}
