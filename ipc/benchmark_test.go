package ipc

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/pithecene-io/stitch/types"
)

func buildChunkStream(b *testing.B, n int, chunkSize int) []byte {
	b.Helper()
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)
	payload := bytes.Repeat([]byte{0xAB}, chunkSize)
	for i := range n {
		err := enc.WriteChunk(&types.ChunkFrame{
			ChunkIndex:     uint32(i),
			TotalSize:      uint64(n * chunkSize),
			MessageID:      "bench",
			OriginalID:     "bench-orig",
			NumberOfChunks: uint32(n),
			Payload:        payload,
		})
		if err != nil {
			b.Fatalf("WriteChunk: %v", err)
		}
	}
	return buf.Bytes()
}

func BenchmarkDecodeChunk(b *testing.B) {
	payload, err := EncodeChunk(&types.ChunkFrame{
		TotalSize:      16 * 1024,
		MessageID:      "bench",
		OriginalID:     "bench-orig",
		NumberOfChunks: 1,
		Payload:        make([]byte, 16*1024),
	})
	if err != nil {
		b.Fatalf("EncodeChunk: %v", err)
	}
	b.SetBytes(int64(len(payload)))
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if _, err := DecodeChunk(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadFrame_BufferedReader(b *testing.B) {
	stream := buildChunkStream(b, 64, 16*1024)
	b.SetBytes(int64(len(stream)))
	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		dec := NewFrameDecoder(bufio.NewReader(bytes.NewReader(stream)))
		for {
			if _, err := dec.ReadFrame(); err != nil {
				break
			}
		}
	}
}
