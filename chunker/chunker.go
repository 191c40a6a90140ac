// Package chunker splits messages into chunk frames for transmission.
package chunker

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/pithecene-io/stitch/types"
)

const (
	// DefaultChunkSize is the payload size per chunk (16 KiB).
	DefaultChunkSize = 16 * 1024
	// MaxDatagramChunkSize keeps an encoded frame inside one IPv4 UDP datagram
	// with room for the msgpack header fields.
	MaxDatagramChunkSize = 65507 - 1024
)

// ErrEmptyOriginalID is returned when no logical message id is given.
var ErrEmptyOriginalID = errors.New("original id must be non-empty")

// NewMessageID returns a fresh id for one transmission attempt.
func NewMessageID() string {
	return uuid.NewString()
}

// Split cuts data into frames of at most chunkSize payload bytes under a
// fresh message id. A chunkSize of 0 selects DefaultChunkSize.
func Split(originalID string, data []byte, chunkSize int) ([]*types.ChunkFrame, error) {
	return SplitWithID(NewMessageID(), originalID, data, chunkSize)
}

// SplitWithID is Split with a caller-chosen message id. Retransmitting the
// same message under the same id lets the receiver deduplicate; a new id
// starts an independent reassembly.
//
// An empty message yields a single frame with an empty payload.
// Payload slices alias data.
func SplitWithID(messageID, originalID string, data []byte, chunkSize int) ([]*types.ChunkFrame, error) {
	if messageID == "" {
		return nil, errors.New("message id must be non-empty")
	}
	if originalID == "" {
		return nil, ErrEmptyOriginalID
	}
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", chunkSize)
	}

	count := (len(data) + chunkSize - 1) / chunkSize
	if count == 0 {
		count = 1
	}
	if uint64(count) > math.MaxUint32 {
		return nil, fmt.Errorf("message of %d bytes needs %d chunks, more than the wire allows", len(data), count)
	}

	frames := make([]*types.ChunkFrame, 0, count)
	for i := range count {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		frames = append(frames, &types.ChunkFrame{
			Type:           types.ChunkFrameType,
			ChunkIndex:     uint32(i),
			TotalSize:      uint64(len(data)),
			MessageID:      messageID,
			OriginalID:     originalID,
			NumberOfChunks: uint32(count),
			Payload:        data[start:end],
		})
	}
	return frames, nil
}
