package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/types"
)

// Sender writes chunk frames as UDP datagrams to one peer.
// Not safe for concurrent use.
type Sender struct {
	conn net.Conn
	// Pace is slept between datagrams when positive.
	Pace time.Duration
}

// Dial connects a Sender to addr.
func Dial(ctx context.Context, addr string) (*Sender, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	return &Sender{conn: conn}, nil
}

// Send encodes and writes each frame as one datagram. It stops at the first
// failure and reports how many frames were sent.
func (s *Sender) Send(ctx context.Context, frames []*types.ChunkFrame) (int, error) {
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		datagram, err := ipc.EncodeChunk(frame)
		if err != nil {
			return i, fmt.Errorf("encode chunk %d: %w", frame.ChunkIndex, err)
		}
		if len(datagram) > ipc.MaxDatagramSize {
			return i, &ipc.FrameError{
				Kind: ipc.FrameErrorTooLarge,
				Msg:  fmt.Sprintf("chunk %d encodes to %d bytes, datagram limit is %d", frame.ChunkIndex, len(datagram), ipc.MaxDatagramSize),
			}
		}
		if _, err := s.conn.Write(datagram); err != nil {
			return i, fmt.Errorf("write chunk %d: %w", frame.ChunkIndex, err)
		}
		if s.Pace > 0 && i < len(frames)-1 {
			select {
			case <-ctx.Done():
				return i + 1, ctx.Err()
			case <-time.After(s.Pace):
			}
		}
	}
	return len(frames), nil
}

// Close closes the underlying socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
