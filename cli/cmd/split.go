package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stitch/cli/render"
	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/types"
)

// SplitResponse reports one split run.
type SplitResponse struct {
	Out        string `json:"out"`
	MessageID  string `json:"message_id"`
	OriginalID string `json:"original_id"`
	Chunks     int    `json:"chunks"`
	TotalSize  uint64 `json:"total_size"`
}

// SplitCommand returns the split command.
func SplitCommand() *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Split a file into length-prefixed chunk frames",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "File to split", Required: true},
			&cli.StringFlag{Name: "out", Usage: "Output frame file (appended to)", Required: true},
			&cli.StringFlag{Name: "original-id", Usage: "Logical message id (default: file name)"},
			&cli.IntFlag{Name: "chunk-size", Usage: "Payload bytes per chunk (default 16384)"},
			&cli.StringFlag{Name: "type", Usage: "Message type", Value: string(types.MessageTypeParameterDelta)},
			&cli.BoolFlag{Name: "shuffle", Usage: "Write chunks in random order"},
		}, FormatFlag, NoColorFlag),
		Action: splitAction,
	}
}

func splitAction(c *cli.Context) error {
	frames, err := frameFile(frameSpec{
		path:        c.String("file"),
		originalID:  c.String("original-id"),
		messageType: types.MessageType(c.String("type")),
		chunkSize:   c.Int("chunk-size"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if c.Bool("shuffle") {
		frames = shuffled(frames)
	}

	if err := appendFrames(c.String("out"), frames); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	first := frames[0]
	return r.Render(SplitResponse{
		Out:        c.String("out"),
		MessageID:  first.MessageID,
		OriginalID: first.OriginalID,
		Chunks:     len(frames),
		TotalSize:  first.TotalSize,
	})
}

// appendFrames writes frames to path in stream form. Appending lets several
// split runs build one interleaved replay file.
func appendFrames(path string, frames []*types.ChunkFrame) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	enc := ipc.NewFrameEncoder(w)
	for _, frame := range frames {
		if err := enc.WriteChunk(frame); err != nil {
			return fmt.Errorf("write chunk %d: %w", frame.ChunkIndex, err)
		}
	}
	return w.Flush()
}
