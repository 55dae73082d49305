package core

import (
	"context"
	"time"
)

// MessageType discriminates A2A envelopes.
type MessageType string

// A2A message types.
const (
	MessageRequest      MessageType = "REQUEST"
	MessageResponse     MessageType = "RESPONSE"
	MessageNotification MessageType = "NOTIFICATION"
)

// Broadcast is the sentinel recipient meaning "all team members except the
// sender". Transports resolve the actual recipient set from the message
// context (team id).
const Broadcast = "*"

// AgentIdentity identifies a live agent: id, version and declared
// capabilities. Resolved through a Registry before delivery.
type AgentIdentity struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Endpoint     string   `json:"endpoint,omitempty"`
}

// Message is the typed A2A envelope used for all inter-agent communication.
// Messages are immutable once sent; the caller generates the id.
type Message struct {
	ID        string         `json:"message_id"`
	Sender    AgentIdentity  `json:"sender"`
	Recipient string         `json:"recipient"`
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRequest builds a REQUEST envelope with a generated id.
func NewRequest(sender AgentIdentity, recipient string, payload map[string]any) Message {
	return newMessage(sender, recipient, MessageRequest, payload)
}

// NewResponse builds a RESPONSE envelope correlated to a request by reusing
// its message id in the context.
func NewResponse(sender AgentIdentity, recipient, requestID string, payload map[string]any) Message {
	m := newMessage(sender, recipient, MessageResponse, payload)
	m.Context["request_id"] = requestID
	return m
}

// NewNotification builds a fire-and-forget NOTIFICATION envelope.
func NewNotification(sender AgentIdentity, recipient string, payload map[string]any) Message {
	return newMessage(sender, recipient, MessageNotification, payload)
}

func newMessage(sender AgentIdentity, recipient string, t MessageType, payload map[string]any) Message {
	return Message{
		ID:        NewID(),
		Sender:    sender,
		Recipient: recipient,
		Type:      t,
		Payload:   payload,
		Context:   map[string]any{},
		Timestamp: time.Now().UTC(),
	}
}

// WithContext returns a copy of the message with an added context entry.
// The original message is not mutated.
func (m Message) WithContext(key string, value any) Message {
	ctx := make(map[string]any, len(m.Context)+1)
	for k, v := range m.Context {
		ctx[k] = v
	}
	ctx[key] = value
	m.Context = ctx
	return m
}

// Transport delivers A2A messages. Request and Notify are deliberately
// separate operations so callers cannot accidentally await a fire-and-forget
// send or forget to await a request/response exchange.
type Transport interface {
	// Request sends msg and blocks until the correlated RESPONSE arrives,
	// the timeout expires or the context is cancelled.
	Request(ctx context.Context, msg Message, timeout time.Duration) (*Message, error)

	// Notify sends msg without waiting for delivery confirmation. A Broadcast
	// recipient fans the message out to all team members except the sender.
	Notify(ctx context.Context, msg Message) error
}
