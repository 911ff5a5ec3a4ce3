package protocol

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/teamline-chat/teamline/internal/models"
)

// OpCode represents the type of WebSocket frame
type OpCode int

const (
	// Client -> Server operations
	OpIdentify    OpCode = 0 // Initial authentication
	OpHeartbeat   OpCode = 1 // Keep-alive ping
	OpSendMessage OpCode = 2 // Send a chat message

	// Server -> Client operations
	OpDispatch       OpCode = 10 // Event dispatch
	OpHeartbeatAck   OpCode = 11 // Heartbeat acknowledgment
	OpHello          OpCode = 12 // Initial connection info
	OpReady          OpCode = 13 // Successful authentication
	OpInvalidSession OpCode = 14 // Authentication failed
	OpReconnect      OpCode = 15 // Server requests reconnection
)

// EventType names a logical event channel carried by OpDispatch frames or
// synthesized locally from the connection lifecycle. The set is closed:
// dispatch goes through a typed table keyed by these constants only.
type EventType string

const (
	// Pushed by the server
	EventMessageNew EventType = "message:new"

	// Connection lifecycle, synthesized client-side
	EventConnect      EventType = "connect"
	EventDisconnect   EventType = "disconnect"
	EventReconnecting EventType = "reconnecting"
)

// Envelope is the WebSocket frame wrapper
type Envelope struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"` // sequence number for dispatches
	Type EventType       `json:"t,omitempty"` // event type for dispatches
}

// NewEnvelope creates a new protocol frame
func NewEnvelope(op OpCode, data interface{}) (*Envelope, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Envelope{Op: op, Data: raw}, nil
}

// NewDispatch creates a new dispatch frame
func NewDispatch(eventType EventType, seq int64, data interface{}) (*Envelope, error) {
	env, err := NewEnvelope(OpDispatch, data)
	if err != nil {
		return nil, err
	}
	env.Seq = &seq
	env.Type = eventType
	return env, nil
}

// --- Client -> Server payloads ---

// IdentifyPayload is sent by the client to authenticate the transport
type IdentifyPayload struct {
	Token string `json:"token"`
}

// HeartbeatPayload is sent to keep the connection alive
type HeartbeatPayload struct {
	LastSequence *int64 `json:"last_sequence"`
}

// SendMessagePayload is sent when a user sends a message over the socket
type SendMessagePayload struct {
	ChatID   uuid.UUID   `json:"chat_id"`
	Content  string      `json:"content"`
	Mentions []uuid.UUID `json:"mentions,omitempty"`
	ReplyTo  *uuid.UUID  `json:"reply_to,omitempty"`
	Nonce    string      `json:"nonce,omitempty"` // client-generated, lets the sender match its own echo
}

// --- Server -> Client payloads ---

// HelloPayload is sent on initial connection
type HelloPayload struct {
	HeartbeatInterval int `json:"heartbeat_interval"` // milliseconds
}

// ReadyPayload is sent after successful authentication
type ReadyPayload struct {
	SessionID     string                 `json:"session_id"`
	User          *models.User           `json:"user"`
	Conversations []*models.Conversation `json:"conversations"`
}

// MessageNewPayload is dispatched on the message:new channel
type MessageNewPayload struct {
	*models.Message
	Sender models.SenderSummary `json:"sender"`
	Nonce  string               `json:"nonce,omitempty"`
}

// ErrorPayload represents an error response
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrorCodeUnknown        = 0
	ErrorCodeUnauthorized   = 4001
	ErrorCodeInvalidPayload = 4002
	ErrorCodeNotFound       = 4003
	ErrorCodeForbidden      = 4004
)
