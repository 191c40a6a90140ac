package reassembly

import (
	"bytes"
	"time"
)

// insertOutcome is the result of placing a chunk into a buffer.
type insertOutcome int

const (
	insertStored insertOutcome = iota
	insertDuplicate
	insertConflict
	insertOverflow
)

// buffer holds the fragments received so far for one message id.
// It is owned by exactly one shard and only touched under that shard's lock,
// or after it has been detached from the table.
type buffer struct {
	messageID      string
	originalID     string
	slots          map[uint32][]byte
	expectedChunks uint32
	expectedSize   uint64
	receivedBytes  uint64
	createdAt      time.Time
}

func newBuffer(c *Chunk, now time.Time) *buffer {
	return &buffer{
		messageID:      c.MessageID,
		originalID:     c.OriginalID,
		slots:          make(map[uint32][]byte, min(c.NumberOfChunks, 64)),
		expectedChunks: c.NumberOfChunks,
		expectedSize:   c.TotalSize,
		createdAt:      now,
	}
}

// received returns the number of distinct indices stored.
func (b *buffer) received() uint32 {
	return uint32(len(b.slots)) //nolint:gosec // bounded by expectedChunks
}

// checkHeader verifies the chunk agrees with the header captured from the first chunk.
func (b *buffer) checkHeader(c *Chunk) error {
	if c.NumberOfChunks != b.expectedChunks || c.TotalSize != b.expectedSize {
		return newProtocolError(InconsistentHeader, b.messageID, c.ChunkIndex,
			"header (chunks=%d, size=%d) disagrees with buffer (chunks=%d, size=%d)",
			c.NumberOfChunks, c.TotalSize, b.expectedChunks, b.expectedSize)
	}
	if c.ChunkIndex >= b.expectedChunks {
		return newProtocolError(IndexOutOfRange, b.messageID, c.ChunkIndex,
			"chunk_index %d >= number_of_chunks %d", c.ChunkIndex, b.expectedChunks)
	}
	return nil
}

// insert stores the payload unless the index is already present.
// An existing slot is never overwritten, and stored bytes never exceed
// expectedSize: each missing slot needs at least one byte, so a payload that
// leaves less room than that is refused.
func (b *buffer) insert(c *Chunk) insertOutcome {
	if existing, ok := b.slots[c.ChunkIndex]; ok {
		if bytes.Equal(existing, c.Payload) {
			return insertDuplicate
		}
		return insertConflict
	}
	missingAfter := uint64(b.expectedChunks - b.received() - 1)
	if b.receivedBytes+uint64(len(c.Payload))+missingAfter > b.expectedSize {
		return insertOverflow
	}
	b.slots[c.ChunkIndex] = c.Payload
	b.receivedBytes += uint64(len(c.Payload))
	return insertStored
}

func (b *buffer) complete() bool {
	return b.received() == b.expectedChunks
}

// assemble concatenates the slots in index order.
// Must only be called on a complete, detached buffer.
func (b *buffer) assemble() ([]byte, error) {
	if b.receivedBytes != b.expectedSize {
		return nil, newProtocolError(AssemblyLengthMismatch, b.messageID, 0,
			"assembled %d bytes, expected %d", b.receivedBytes, b.expectedSize)
	}
	out := make([]byte, 0, b.expectedSize)
	for i := uint32(0); i < b.expectedChunks; i++ {
		out = append(out, b.slots[i]...)
	}
	return out, nil
}

// newSingleBuffer wraps a one-chunk message so it follows the normal
// completion path without entering the table.
func newSingleBuffer(c *Chunk, now time.Time) *buffer {
	b := newBuffer(c, now)
	b.insert(c)
	return b
}
