// Package transport moves chunk frames between nodes.
//
// The Receiver reads UDP datagrams with several goroutines that all feed
// one Assembler. Completed messages are handed to a Submitter without
// blocking. Ingest replays length-prefixed frame streams through the same
// path for offline reassembly.
package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/stitch/dispatch"
	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/reassembly"
	"github.com/pithecene-io/stitch/types"
)

// DefaultReaders is the number of reader goroutines used when unset.
const DefaultReaders = 4

// Submitter accepts completed messages. Submit must not block.
type Submitter interface {
	Submit(del dispatch.Delivery) error
}

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	// Readers is the number of concurrent reader goroutines.
	Readers int
	// ReadBuffer sets the socket receive buffer in bytes when positive.
	ReadBuffer int
	// Logger is optional.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
	// Now stamps deliveries. Defaults to time.Now.
	Now func() time.Time
}

// Receiver reads chunk datagrams from a packet connection.
type Receiver struct {
	conn      net.PacketConn
	assembler *reassembly.Assembler
	submitter Submitter
	config    ReceiverConfig
	logger    *log.Logger
	collector *metrics.Collector

	closeOnce sync.Once
	closeErr  error
}

// Listen opens a UDP socket on addr and wraps it in a Receiver.
func Listen(ctx context.Context, addr string, asm *reassembly.Assembler, sub Submitter, cfg ReceiverConfig) (*Receiver, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.ReadBuffer > 0 {
		if udp, ok := conn.(*net.UDPConn); ok {
			if err := udp.SetReadBuffer(cfg.ReadBuffer); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
	}
	return NewReceiver(conn, asm, sub, cfg), nil
}

// NewReceiver wraps an existing packet connection. The Receiver owns conn.
func NewReceiver(conn net.PacketConn, asm *reassembly.Assembler, sub Submitter, cfg ReceiverConfig) *Receiver {
	if cfg.Readers <= 0 {
		cfg.Readers = DefaultReaders
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Receiver{
		conn:      conn,
		assembler: asm,
		submitter: sub,
		config:    cfg,
		logger:    cfg.Logger,
		collector: cfg.Collector,
	}
}

// Addr returns the local address.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Serve runs the reader goroutines until ctx is canceled or the connection
// fails. Cancellation closes the connection and is not an error.
func (r *Receiver) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		_ = r.Close()
		return nil
	})

	for range r.config.Readers {
		g.Go(func() error {
			return r.readLoop(gctx)
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Receiver) readLoop(ctx context.Context) error {
	buf := make([]byte, ipc.MaxDatagramSize+1)
	for {
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		r.HandleDatagram(buf[:n])
	}
}

// HandleDatagram decodes one datagram, feeds the assembler and submits a
// completed message. The datagram may be reused after it returns.
func (r *Receiver) HandleDatagram(datagram []byte) reassembly.Result {
	r.collector.IncDatagram(len(datagram))

	frame, err := ipc.DecodeDatagram(datagram)
	if err != nil {
		r.collector.IncDecodeError()
		fields := map[string]any{
			"size":  len(datagram),
			"error": err.Error(),
		}
		if typ, perr := ipc.ProbeFrameType(datagram); perr == nil {
			fields["frame_type"] = typ
		}
		r.logDebug("undecodable datagram", fields)
		return reassembly.Result{Status: reassembly.StatusRejected, Err: err}
	}

	// Decoding copies the payload out of datagram.
	res := r.assembler.Accept(chunkOf(frame))
	switch res.Status {
	case reassembly.StatusBuffered:
		r.collector.IncBuffered()
	case reassembly.StatusCompleted:
		r.submit(res)
	}
	return res
}

// chunkOf converts a frame without validating it. Invalid chunks still go
// to the assembler so that observers see the protocol error.
func chunkOf(frame *types.ChunkFrame) *reassembly.Chunk {
	if c, err := reassembly.FromFrame(frame); err == nil {
		return c
	}
	return &reassembly.Chunk{
		ChunkIndex:     frame.ChunkIndex,
		TotalSize:      frame.TotalSize,
		MessageID:      frame.MessageID,
		OriginalID:     frame.OriginalID,
		NumberOfChunks: frame.NumberOfChunks,
		Payload:        frame.Payload,
	}
}

func (r *Receiver) submit(res reassembly.Result) {
	if r.submitter == nil {
		return
	}
	err := r.submitter.Submit(dispatch.Delivery{
		MessageID:  res.MessageID,
		OriginalID: res.OriginalID,
		Data:       res.Data,
		ReceivedAt: r.config.Now(),
	})
	if err != nil {
		r.logDebug("delivery not submitted", map[string]any{
			"message_id": res.MessageID,
			"error":      err.Error(),
		})
	}
}

// Close closes the connection. Safe to call more than once.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.conn.Close()
	})
	return r.closeErr
}

func (r *Receiver) logDebug(msg string, fields map[string]any) {
	if r.logger != nil {
		r.logger.Debug(msg, fields)
	}
}
