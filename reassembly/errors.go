package reassembly

import (
	"errors"
	"fmt"
)

// ErrorKind classifies chunk and assembly failures.
type ErrorKind int

const (
	// InvalidChunk indicates a chunk that violates field invariants
	// (empty ids, zero chunk count, empty payload for a non-empty message).
	InvalidChunk ErrorKind = iota
	// IndexOutOfRange indicates chunk_index >= number_of_chunks.
	IndexOutOfRange
	// InconsistentHeader indicates total_size or number_of_chunks disagree
	// with the buffer already open for the message id.
	InconsistentHeader
	// ConflictingChunk indicates a duplicate index carrying a different payload.
	ConflictingChunk
	// AssemblyLengthMismatch indicates the concatenated length differs from total_size.
	AssemblyLengthMismatch
	// MessageTooLarge indicates total_size exceeds the configured maximum.
	MessageTooLarge
	// IncompleteAssemblyTimeout indicates a buffer aged out before completion.
	IncompleteAssemblyTimeout
	// CapacityEviction indicates a buffer dropped to admit a newer message.
	CapacityEviction
)

var kindNames = map[ErrorKind]string{
	InvalidChunk:              "invalid_chunk",
	IndexOutOfRange:           "index_out_of_range",
	InconsistentHeader:        "inconsistent_header",
	ConflictingChunk:          "conflicting_chunk",
	AssemblyLengthMismatch:    "assembly_length_mismatch",
	MessageTooLarge:           "message_too_large",
	IncompleteAssemblyTimeout: "incomplete_assembly_timeout",
	CapacityEviction:          "capacity_eviction",
}

// String returns the snake_case name used in events and logs.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("error_kind(%d)", int(k))
}

// IsMessageFailure returns true if the kind marks a logical message that
// will never be delivered (as opposed to a single discarded chunk).
func (k ErrorKind) IsMessageFailure() bool {
	switch k {
	case AssemblyLengthMismatch, IncompleteAssemblyTimeout, CapacityEviction:
		return true
	default:
		return false
	}
}

// ProtocolError describes why a chunk or a message was discarded.
type ProtocolError struct {
	Kind       ErrorKind
	MessageID  string
	ChunkIndex uint32
	Msg        string
}

func (e *ProtocolError) Error() string {
	if e.MessageID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("message %s: %s: %s", e.MessageID, e.Kind, e.Msg)
}

func newProtocolError(kind ErrorKind, messageID string, index uint32, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Kind:       kind,
		MessageID:  messageID,
		ChunkIndex: index,
		Msg:        fmt.Sprintf(format, args...),
	}
}

// IsKind reports whether err is a *ProtocolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("assembler closed")
