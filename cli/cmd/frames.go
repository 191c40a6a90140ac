package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pithecene-io/stitch/chunker"
	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/types"
)

// frameSpec describes how a file is wrapped and split for transmission.
type frameSpec struct {
	path        string
	originalID  string
	messageType types.MessageType
	chunkSize   int
}

// frameFile wraps the file content in a message envelope and splits it.
// The original id defaults to the file's base name.
func frameFile(spec frameSpec) ([]*types.ChunkFrame, error) {
	data, err := os.ReadFile(spec.path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", spec.path, err)
	}
	if spec.originalID == "" {
		spec.originalID = filepath.Base(spec.path)
	}
	if spec.messageType == "" {
		spec.messageType = types.MessageTypeParameterDelta
	}
	if spec.chunkSize > chunker.MaxDatagramChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds datagram limit %d", spec.chunkSize, chunker.MaxDatagramChunkSize)
	}

	envelope, err := ipc.EncodeEnvelope(&types.MessageEnvelope{Type: spec.messageType, Body: data})
	if err != nil {
		return nil, err
	}
	return chunker.Split(spec.originalID, envelope, spec.chunkSize)
}
