package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stitch/cli/render"
	"github.com/pithecene-io/stitch/transport"
	"github.com/pithecene-io/stitch/types"
)

// SendResponse reports one send run.
type SendResponse struct {
	MessageID  string `json:"message_id"`
	OriginalID string `json:"original_id"`
	Type       string `json:"type"`
	Chunks     int    `json:"chunks"`
	Datagrams  int    `json:"datagrams"`
	TotalSize  uint64 `json:"total_size"`
}

// SendCommand returns the send command.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Split a file into chunks and send them over UDP",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Receiver address host:port", Required: true},
			&cli.StringFlag{Name: "file", Usage: "File to send", Required: true},
			&cli.StringFlag{Name: "original-id", Usage: "Logical message id (default: file name)"},
			&cli.IntFlag{Name: "chunk-size", Usage: "Payload bytes per chunk (default 16384)"},
			&cli.StringFlag{Name: "type", Usage: "Message type", Value: string(types.MessageTypeParameterDelta)},
			&cli.BoolFlag{Name: "shuffle", Usage: "Send chunks in random order"},
			&cli.IntFlag{Name: "repeat", Usage: "Send the whole chunk set this many times under one message id", Value: 1},
			&cli.DurationFlag{Name: "pace", Usage: "Delay between datagrams"},
		}, FormatFlag, NoColorFlag),
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	if c.Int("repeat") < 1 {
		return cli.Exit("--repeat must be >= 1", 1)
	}
	frames, err := frameFile(frameSpec{
		path:        c.String("file"),
		originalID:  c.String("original-id"),
		messageType: types.MessageType(c.String("type")),
		chunkSize:   c.Int("chunk-size"),
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sender, err := transport.Dial(ctx, c.String("addr"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("dial %s: %v", c.String("addr"), err), 1)
	}
	defer sender.Close()
	sender.Pace = c.Duration("pace")

	sent := 0
	for range c.Int("repeat") {
		batch := frames
		if c.Bool("shuffle") {
			batch = shuffled(frames)
		}
		n, err := sender.Send(ctx, batch)
		sent += n
		if err != nil {
			return cli.Exit(fmt.Sprintf("send failed after %d datagrams: %v", sent, err), 1)
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	first := frames[0]
	return r.Render(SendResponse{
		MessageID:  first.MessageID,
		OriginalID: first.OriginalID,
		Type:       c.String("type"),
		Chunks:     len(frames),
		Datagrams:  sent,
		TotalSize:  first.TotalSize,
	})
}

// shuffled returns a permuted copy of frames.
func shuffled(frames []*types.ChunkFrame) []*types.ChunkFrame {
	out := make([]*types.ChunkFrame, len(frames))
	copy(out, frames)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
