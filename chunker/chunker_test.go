package chunker

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/pithecene-io/stitch/reassembly"
)

func TestSplit_ReassemblesInAnyOrder(t *testing.T) {
	data := bytes.Repeat([]byte("parameter-delta:"), 1000)
	frames, err := Split("delta-7", data, 1000)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(frames) != 16 {
		t.Fatalf("frames = %d, want 16", len(frames))
	}
	if _, err := uuid.Parse(frames[0].MessageID); err != nil {
		t.Errorf("message id %q is not a uuid: %v", frames[0].MessageID, err)
	}

	a, err := reassembly.New(reassembly.Config{}, nil)
	if err != nil {
		t.Fatalf("reassembly.New: %v", err)
	}
	defer a.Close()

	var result reassembly.Result
	for i := len(frames) - 1; i >= 0; i-- {
		c, err := reassembly.FromFrame(frames[i])
		if err != nil {
			t.Fatalf("FromFrame(%d): %v", i, err)
		}
		result = a.Accept(c)
	}
	if result.Status != reassembly.StatusCompleted {
		t.Fatalf("status = %s, want completed (err=%v)", result.Status, result.Err)
	}
	if !bytes.Equal(result.Data, data) {
		t.Error("reassembled bytes differ from input")
	}
	if result.OriginalID != "delta-7" {
		t.Errorf("OriginalID = %q, want delta-7", result.OriginalID)
	}
}

func TestSplitWithID_Boundaries(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunkSize int
		want      int
		lastLen   int
	}{
		{"empty", 0, 4, 1, 0},
		{"exact multiple", 8, 4, 2, 4},
		{"remainder", 9, 4, 3, 1},
		{"smaller than chunk", 3, 4, 1, 3},
		{"default chunk size", DefaultChunkSize + 1, 0, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := SplitWithID("m", "o", make([]byte, tt.size), tt.chunkSize)
			if err != nil {
				t.Fatalf("SplitWithID: %v", err)
			}
			if len(frames) != tt.want {
				t.Fatalf("frames = %d, want %d", len(frames), tt.want)
			}
			last := frames[len(frames)-1]
			if len(last.Payload) != tt.lastLen {
				t.Errorf("last payload = %d bytes, want %d", len(last.Payload), tt.lastLen)
			}
			for i, f := range frames {
				if f.ChunkIndex != uint32(i) || f.NumberOfChunks != uint32(tt.want) || f.TotalSize != uint64(tt.size) {
					t.Errorf("frame %d header = (%d, %d, %d)", i, f.ChunkIndex, f.NumberOfChunks, f.TotalSize)
				}
			}
		})
	}
}

func TestSplitWithID_InvalidArguments(t *testing.T) {
	if _, err := SplitWithID("m", "", []byte("x"), 1); err != ErrEmptyOriginalID {
		t.Errorf("err = %v, want ErrEmptyOriginalID", err)
	}
	if _, err := SplitWithID("", "o", []byte("x"), 1); err == nil {
		t.Error("expected error for empty message id")
	}
	if _, err := SplitWithID("m", "o", []byte("x"), -1); err == nil {
		t.Error("expected error for negative chunk size")
	}
}

func TestSplit_FreshIDPerCall(t *testing.T) {
	a, _ := Split("o", []byte("abc"), 0)
	b, _ := Split("o", []byte("abc"), 0)
	if a[0].MessageID == b[0].MessageID {
		t.Error("two Split calls produced the same message id")
	}
}
