package reassembly

import "github.com/pithecene-io/stitch/types"

// Chunk is one validated fragment of a larger message.
// Construct with NewChunk or FromFrame; the zero value is not valid.
type Chunk struct {
	ChunkIndex     uint32
	TotalSize      uint64
	MessageID      string
	OriginalID     string
	NumberOfChunks uint32
	Payload        []byte
}

// NewChunk builds a chunk and checks its field invariants.
// The payload slice is retained, not copied.
func NewChunk(index uint32, totalSize uint64, messageID, originalID string, numberOfChunks uint32, payload []byte) (*Chunk, error) {
	c := &Chunk{
		ChunkIndex:     index,
		TotalSize:      totalSize,
		MessageID:      messageID,
		OriginalID:     originalID,
		NumberOfChunks: numberOfChunks,
		Payload:        payload,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromFrame converts a decoded wire frame into a validated chunk.
func FromFrame(f *types.ChunkFrame) (*Chunk, error) {
	return NewChunk(f.ChunkIndex, f.TotalSize, f.MessageID, f.OriginalID, f.NumberOfChunks, f.Payload)
}

// Frame converts the chunk into its wire representation.
func (c *Chunk) Frame() *types.ChunkFrame {
	return &types.ChunkFrame{
		Type:           types.ChunkFrameType,
		ChunkIndex:     c.ChunkIndex,
		TotalSize:      c.TotalSize,
		MessageID:      c.MessageID,
		OriginalID:     c.OriginalID,
		NumberOfChunks: c.NumberOfChunks,
		Payload:        c.Payload,
	}
}

// Validate checks the invariants that hold for any chunk in isolation.
func (c *Chunk) Validate() error {
	if c.MessageID == "" {
		return newProtocolError(InvalidChunk, "", c.ChunkIndex, "message_id must be non-empty")
	}
	if c.OriginalID == "" {
		return newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex, "original_id must be non-empty")
	}
	if c.NumberOfChunks == 0 {
		return newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex, "number_of_chunks must be >= 1")
	}
	if uint64(c.NumberOfChunks) > max(c.TotalSize, 1) {
		return newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex,
			"number_of_chunks %d exceeds total_size %d", c.NumberOfChunks, c.TotalSize)
	}
	if c.ChunkIndex >= c.NumberOfChunks {
		return newProtocolError(IndexOutOfRange, c.MessageID, c.ChunkIndex,
			"chunk_index %d >= number_of_chunks %d", c.ChunkIndex, c.NumberOfChunks)
	}
	if len(c.Payload) == 0 && c.TotalSize > 0 {
		return newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex,
			"empty payload for message of %d bytes", c.TotalSize)
	}
	if uint64(len(c.Payload)) > c.TotalSize {
		return newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex,
			"payload of %d bytes exceeds total_size %d", len(c.Payload), c.TotalSize)
	}
	// Every other chunk carries at least one byte.
	if uint64(len(c.Payload))+uint64(c.NumberOfChunks-1) > c.TotalSize {
		return newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex,
			"payload of %d bytes leaves no room for %d more chunks in total_size %d",
			len(c.Payload), c.NumberOfChunks-1, c.TotalSize)
	}
	return nil
}
