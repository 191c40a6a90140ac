package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/reassembly"
)

// IngestStats summarizes one Ingest run.
type IngestStats struct {
	Frames       int
	DecodeErrors int
	Completed    int
	Rejected     int
	Ignored      int
}

// Ingest reads length-prefixed chunk frames from r and feeds them to asm.
// fn, when non-nil, is called with every completed message in arrival order.
//
// Undecodable frames are counted and skipped. A truncated or oversized
// frame ends the run with its error, prefixed by the frame position.
// io.EOF at a frame boundary is a clean end.
func Ingest(ctx context.Context, r io.Reader, asm *reassembly.Assembler, fn func(reassembly.Result) error) (IngestStats, error) {
	var stats IngestStats
	dec := ipc.NewFrameDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			return stats, nil
		}
		if ipc.IsFatalFrameError(err) {
			return stats, fmt.Errorf("frame %d: %w", stats.Frames+1, err)
		}
		if err != nil {
			return stats, err
		}
		stats.Frames++

		frame, err := ipc.DecodeChunk(payload)
		if err != nil {
			stats.DecodeErrors++
			continue
		}
		res := asm.Accept(chunkOf(frame))
		switch res.Status {
		case reassembly.StatusCompleted:
			stats.Completed++
			if fn != nil {
				if err := fn(res); err != nil {
					return stats, err
				}
			}
		case reassembly.StatusRejected:
			stats.Rejected++
		case reassembly.StatusIgnored:
			stats.Ignored++
		}
	}
}
