package types

import "time"

// EventKind names an observable reassembly event.
type EventKind string

// Event kinds emitted by the assembler.
const (
	EventKindCompleted                 EventKind = "completed"
	EventKindIncompleteAssemblyTimeout EventKind = "incomplete_assembly_timeout"
	EventKindCapacityEviction          EventKind = "capacity_eviction"
	EventKindProtocolError             EventKind = "protocol_error"
	EventKindLateChunk                 EventKind = "late_chunk"
	EventKindDuplicateChunk            EventKind = "duplicate_chunk"
)

// AllEventKinds lists every event kind in a stable order.
func AllEventKinds() []EventKind {
	return []EventKind{
		EventKindCompleted,
		EventKindIncompleteAssemblyTimeout,
		EventKindCapacityEviction,
		EventKindProtocolError,
		EventKindLateChunk,
		EventKindDuplicateChunk,
	}
}

// IsFailure returns true if the event marks a logical message that will
// never be dispatched.
func (k EventKind) IsFailure() bool {
	return k == EventKindIncompleteAssemblyTimeout || k == EventKindCapacityEviction
}

// Event is an observable outcome of chunk processing.
// Only the fields relevant to Kind are populated.
type Event struct {
	Kind       EventKind `json:"kind" msgpack:"kind"`
	MessageID  string    `json:"message_id" msgpack:"message_id"`
	OriginalID string    `json:"original_id,omitempty" msgpack:"original_id,omitempty"`
	// TotalSize is set for completed events.
	TotalSize uint64 `json:"total_size,omitempty" msgpack:"total_size,omitempty"`
	// ReceivedCount and ExpectedChunks are set for evictions.
	ReceivedCount  uint32 `json:"received_count,omitempty" msgpack:"received_count,omitempty"`
	ExpectedChunks uint32 `json:"expected_chunks,omitempty" msgpack:"expected_chunks,omitempty"`
	// ChunkIndex is set for per-chunk events.
	ChunkIndex *uint32 `json:"chunk_index,omitempty" msgpack:"chunk_index,omitempty"`
	// ErrorKind is set for protocol_error events.
	ErrorKind string    `json:"error_kind,omitempty" msgpack:"error_kind,omitempty"`
	Ts        time.Time `json:"ts" msgpack:"ts"`
}
