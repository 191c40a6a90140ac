//nolint:revive // types is a common Go package naming convention
package types

// ChunkFrameType is the type discriminant for chunk frames.
const ChunkFrameType = "chunk"

// ChunkFrame is the wire representation of one message fragment.
// Field names are stable; senders in other languages match these msgpack tags.
type ChunkFrame struct {
	// Type is always "chunk".
	Type string `msgpack:"type"`
	// ChunkIndex is the 0-based position of this fragment.
	ChunkIndex uint32 `msgpack:"chunk_index"`
	// TotalSize is the byte length of the fully reassembled message.
	TotalSize uint64 `msgpack:"total_size"`
	// MessageID identifies one fragmented transmission attempt.
	MessageID string `msgpack:"message_id"`
	// OriginalID identifies the logical message carried by this chunk set.
	OriginalID string `msgpack:"original_id"`
	// NumberOfChunks is the total fragment count for MessageID.
	NumberOfChunks uint32 `msgpack:"number_of_chunks"`
	// Payload is the fragment content.
	Payload []byte `msgpack:"payload"`
}
