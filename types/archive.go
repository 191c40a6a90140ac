package types

import "time"

// ArchivedMessage is a reassembled message persisted to the journal.
type ArchivedMessage struct {
	MessageID  string      `json:"message_id"`
	OriginalID string      `json:"original_id"`
	Type       MessageType `json:"type"`
	Size       int         `json:"size"`
	// Data is the reassembled bytes, envelope included.
	Data []byte    `json:"data"`
	Ts   time.Time `json:"ts"`
}
