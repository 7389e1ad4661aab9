package wire

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()

	data := map[string]string{"name": "test-job"}
	msg, err := NewRequest(MethodDispatch, data)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	if msg.ID == "" {
		t.Error("ID should be auto-generated")
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", msg.ID)
	}
	if msg.Type != TypeRequest {
		t.Errorf("Type = %q, want %q", msg.Type, TypeRequest)
	}
	if msg.Method != MethodDispatch {
		t.Errorf("Method = %q, want %q", msg.Method, MethodDispatch)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}

	var payload map[string]string
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload["name"] != "test-job" {
		t.Errorf("payload name = %q, want %q", payload["name"], "test-job")
	}
}

func TestNewResponse(t *testing.T) {
	t.Parallel()

	msg, err := NewResponse("correl-1", DispatchAck{Status: StatusSuccess, JobID: "job-1"})
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}

	if msg.Type != TypeResponse {
		t.Errorf("Type = %q, want %q", msg.Type, TypeResponse)
	}
	if msg.CorrelID != "correl-1" {
		t.Errorf("CorrelID = %q, want %q", msg.CorrelID, "correl-1")
	}
	if msg.ID == "" {
		t.Error("ID should be auto-generated")
	}
}

func TestNewError(t *testing.T) {
	t.Parallel()

	msg := NewError("correl-2", ErrCodeNotFound, "not found")
	if msg.Type != TypeError {
		t.Errorf("Type = %q, want %q", msg.Type, TypeError)
	}
	if msg.CorrelID != "correl-2" {
		t.Errorf("CorrelID = %q, want %q", msg.CorrelID, "correl-2")
	}
	if msg.Error == nil {
		t.Fatal("Error should not be nil")
	}
	if msg.Error.Code != ErrCodeNotFound {
		t.Errorf("Error.Code = %d, want %d", msg.Error.Code, ErrCodeNotFound)
	}
	if msg.Error.Message != "not found" {
		t.Errorf("Error.Message = %q, want %q", msg.Error.Message, "not found")
	}
}

func TestNewEvent(t *testing.T) {
	t.Parallel()

	msg, err := NewEvent(EventJobCompleted, JobCompleted{JobID: "job-9"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	if msg.Type != TypeEvent {
		t.Errorf("Type = %q, want %q", msg.Type, TypeEvent)
	}
	if msg.Method != EventJobCompleted {
		t.Errorf("Method = %q, want %q", msg.Method, EventJobCompleted)
	}
}

func TestNewMessageID(t *testing.T) {
	t.Parallel()

	id1 := NewMessageID()
	if id1 == "" {
		t.Error("NewMessageID returned empty string")
	}

	id2 := NewMessageID()
	if id1 == id2 {
		t.Error("two calls to NewMessageID should produce different ids")
	}
}

func TestCodecJSONRoundtrip(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{}
	if codec.Name() != CodecNameJSON {
		t.Errorf("Name = %q, want %q", codec.Name(), CodecNameJSON)
	}

	original := &Message{
		ID:        "test-1",
		Type:      TypeRequest,
		Method:    MethodDispatch,
		Data:      json.RawMessage(`{"name":"test"}`),
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}

	encoded, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Method != original.Method {
		t.Errorf("Method = %q, want %q", decoded.Method, original.Method)
	}
	if string(decoded.Data) != string(original.Data) {
		t.Errorf("Data = %s, want %s", decoded.Data, original.Data)
	}
}

func TestCodecMsgpackRoundtrip(t *testing.T) {
	t.Parallel()

	codec := &MsgpackCodec{}
	if codec.Name() != CodecNameMsgpack {
		t.Errorf("Name = %q, want %q", codec.Name(), CodecNameMsgpack)
	}

	original := &Message{
		ID:       "test-2",
		Type:     TypeError,
		CorrelID: "correl-7",
		Error:    &ErrorDetail{Code: ErrCodeInternal, Message: "boom"},
	}

	encoded, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.CorrelID != original.CorrelID {
		t.Errorf("CorrelID = %q, want %q", decoded.CorrelID, original.CorrelID)
	}
	if decoded.Error == nil || decoded.Error.Code != ErrCodeInternal {
		t.Errorf("Error = %+v, want code %d", decoded.Error, ErrCodeInternal)
	}
}

func TestGetCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give string
		want string
	}{
		{"json", CodecNameJSON},
		{"msgpack", CodecNameMsgpack},
		{"", CodecNameJSON},
		{"unknown", CodecNameJSON},
	}

	for _, tt := range tests {
		if got := GetCodec(tt.give).Name(); got != tt.want {
			t.Errorf("GetCodec(%q).Name() = %q, want %q", tt.give, got, tt.want)
		}
	}
}
