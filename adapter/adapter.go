// Package adapter defines the notification boundary for reassembled
// messages.
//
// Adapters publish a small JSON notice to downstream systems whenever a
// message completes. The payload itself stays in the journal; consumers
// that need the bytes read them from there.
package adapter

import (
	"context"
	"time"
)

// EventTypeMessageReassembled is the event_type of every notification.
const EventTypeMessageReassembled = "message_reassembled"

// MessageReassembledEvent is the payload published when a message completes.
type MessageReassembledEvent struct {
	EventType   string `json:"event_type"` // always "message_reassembled"
	NodeID      string `json:"node_id"`
	Cluster     string `json:"cluster,omitempty"`
	MessageID   string `json:"message_id"`
	OriginalID  string `json:"original_id"`
	MessageType string `json:"message_type"`
	SizeBytes   int    `json:"size_bytes"`
	Timestamp   string `json:"timestamp"` // RFC 3339
}

// NewMessageReassembledEvent fills the fixed fields of a notification.
func NewMessageReassembledEvent(nodeID, messageID, originalID, messageType string, size int, ts time.Time) *MessageReassembledEvent {
	return &MessageReassembledEvent{
		EventType:   EventTypeMessageReassembled,
		NodeID:      nodeID,
		MessageID:   messageID,
		OriginalID:  originalID,
		MessageType: messageType,
		SizeBytes:   size,
		Timestamp:   ts.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes reassembly notifications to a downstream system.
// Implementations must be safe for concurrent use by dispatch workers.
type Adapter interface {
	// Publish sends a notification. Must respect context cancellation.
	Publish(ctx context.Context, event *MessageReassembledEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt i (1-based):
// base, 2*base, 4*base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return base << (attempt - 1)
}
