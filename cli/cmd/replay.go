package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stitch/cli/render"
	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/observe"
	"github.com/pithecene-io/stitch/reassembly"
	"github.com/pithecene-io/stitch/transport"
)

// ReplayResponse reports one offline reassembly run.
type ReplayResponse struct {
	Frames       int             `json:"frames"`
	DecodeErrors int             `json:"decode_errors"`
	Completed    int             `json:"completed"`
	Rejected     int             `json:"rejected"`
	Ignored      int             `json:"ignored"`
	Incomplete   int             `json:"incomplete"`
	Messages     []ReplayMessage `json:"messages"`
}

// ReplayMessage describes one reassembled message.
type ReplayMessage struct {
	OriginalID string `json:"original_id"`
	MessageID  string `json:"message_id"`
	Type       string `json:"type"`
	Size       int    `json:"size"`
	Path       string `json:"path,omitempty"`
}

// ReplayCommand returns the replay command.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Reassemble messages from a length-prefixed frame file",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "in", Usage: "Frame file written by split", Required: true},
			&cli.StringFlag{Name: "out-dir", Usage: "Directory for reassembled message bodies"},
			&cli.StringFlag{Name: "duplicate-chunk-policy", Usage: "ignore_if_identical or reject_on_conflict"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log reassembly events to stderr"},
		}, FormatFlag, NoColorFlag),
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	dup, err := reassembly.ParseDuplicatePolicy(c.String("duplicate-chunk-policy"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	outDir := c.String("out-dir")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return cli.Exit(fmt.Sprintf("cannot create %s: %v", outDir, err), 1)
		}
	}

	in, err := os.Open(c.String("in"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer in.Close()

	logger := log.NewNop()
	if c.Bool("verbose") {
		logger = log.NewLogger(nodeMetaForCLI())
	}
	resp, err := replay(c.Context, bufio.NewReader(in), dup, outDir, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("replay failed: %v", err), 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(resp)
}

// replay reassembles every message in the frame stream. Completed bodies
// are written to outDir when it is set.
func replay(ctx context.Context, in *bufio.Reader, dup reassembly.DuplicatePolicy, outDir string, logger *log.Logger) (*ReplayResponse, error) {
	asm, err := reassembly.New(reassembly.Config{DuplicatePolicy: dup}, observe.NewLogObserver(logger))
	if err != nil {
		return nil, err
	}

	resp := &ReplayResponse{Messages: []ReplayMessage{}}
	stats, err := transport.Ingest(ctx, in, asm, func(res reassembly.Result) error {
		msg := ReplayMessage{
			OriginalID: res.OriginalID,
			MessageID:  res.MessageID,
			Size:       len(res.Data),
		}
		body := res.Data
		if env, derr := ipc.DecodeEnvelope(res.Data); derr == nil {
			msg.Type = string(env.Type)
			body = env.Body
		}
		if outDir != "" {
			msg.Path = filepath.Join(outDir, outputName(res.OriginalID, res.MessageID))
			if err := os.WriteFile(msg.Path, body, 0o644); err != nil {
				return err
			}
		}
		resp.Messages = append(resp.Messages, msg)
		return nil
	})
	resp.Incomplete = asm.InFlight()
	if cerr := asm.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}

	resp.Frames = stats.Frames
	resp.DecodeErrors = stats.DecodeErrors
	resp.Completed = stats.Completed
	resp.Rejected = stats.Rejected
	resp.Ignored = stats.Ignored
	return resp, nil
}

var unsafeNameChars = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

// outputName derives a file name from the original id. The message id
// suffix keeps retransmissions of one original apart.
func outputName(originalID, messageID string) string {
	short := messageID
	if len(short) > 8 {
		short = short[:8]
	}
	return unsafeNameChars.Replace(originalID) + "." + short + ".bin"
}
