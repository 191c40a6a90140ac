// Package dispatch delivers reassembled messages to typed handlers.
//
// Every reassembled buffer carries a msgpack MessageEnvelope whose Type
// selects the handler. Submit is non-blocking so the receive path never
// waits on a handler; a bounded queue feeds a fixed worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/stitch/ipc"
	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/types"
)

// Defaults for Config.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

var (
	// ErrQueueFull is returned by Submit when the queue has no room.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrUnknownMessageType is returned when no handler is registered for
	// the envelope type and there is no fallback.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Delivery is a completed message handed over by the receiver.
type Delivery struct {
	MessageID  string
	OriginalID string
	Data       []byte
	ReceivedAt time.Time
}

// Message is a Delivery with its envelope decoded.
type Message struct {
	Delivery
	Type types.MessageType
	Body []byte
}

// Handler processes one decoded message.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config configures a Dispatcher.
type Config struct {
	// Workers is the number of handler goroutines (default 4).
	Workers int
	// QueueSize bounds deliveries waiting for a worker (default 256).
	QueueSize int
	// HandlerTimeout bounds each handler call. Zero means no timeout.
	HandlerTimeout time.Duration
	// Logger is optional.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
}

// Stats is a point-in-time view of dispatcher counters.
type Stats struct {
	Submitted int64
	Succeeded int64
	Failed    int64
	Dropped   int64
	Unknown   int64
}

// Dispatcher routes deliveries to handlers by message type.
type Dispatcher struct {
	config    Config
	logger    *log.Logger
	collector *metrics.Collector

	handlersMu sync.RWMutex
	handlers   map[types.MessageType]Handler
	fallback   Handler

	queue chan Delivery

	mu      sync.RWMutex // guards closed; held shared while enqueueing
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	unknown   atomic.Int64
}

// New creates a Dispatcher. Call Start to launch the workers.
func New(config Config) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	return &Dispatcher{
		config:    config,
		logger:    config.Logger,
		collector: config.Collector,
		handlers:  make(map[types.MessageType]Handler),
		queue:     make(chan Delivery, config.QueueSize),
	}
}

// Register installs the handler for a message type.
// Registering the same type twice is an error.
func (d *Dispatcher) Register(t types.MessageType, h Handler) error {
	if t == "" {
		return errors.New("message type must be non-empty")
	}
	if h == nil {
		return fmt.Errorf("nil handler for %q", t)
	}

	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()

	if _, exists := d.handlers[t]; exists {
		return fmt.Errorf("handler already registered for %q", t)
	}
	d.handlers[t] = h
	return nil
}

// SetFallback installs the handler for types with no registration.
func (d *Dispatcher) SetFallback(h Handler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	d.fallback = h
}

// Start launches the worker pool. Workers exit when ctx is canceled or
// Close is called. Start is a no-op after the first call.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for range d.config.Workers {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Submit enqueues a delivery without blocking.
func (d *Dispatcher) Submit(del Delivery) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- del:
		d.submitted.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		d.collector.IncDispatchDropped()
		d.logDrop(del)
		return ErrQueueFull
	}
}

// Dispatch decodes and handles one delivery on the caller's goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, del Delivery) error {
	env, err := ipc.DecodeEnvelope(del.Data)
	if err != nil {
		d.recordFailure(del, err)
		return err
	}

	d.handlersMu.RLock()
	h, ok := d.handlers[env.Type]
	if !ok {
		h = d.fallback
	}
	d.handlersMu.RUnlock()

	if h == nil {
		d.unknown.Add(1)
		err := fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
		d.recordFailure(del, err)
		return err
	}

	if d.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.HandlerTimeout)
		defer cancel()
	}

	msg := &Message{Delivery: del, Type: env.Type, Body: env.Body}
	if err := h.Handle(ctx, msg); err != nil {
		err = fmt.Errorf("handle %s: %w", env.Type, err)
		d.recordFailure(del, err)
		return err
	}

	d.succeeded.Add(1)
	d.collector.IncDispatchSuccess()
	return nil
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case del, ok := <-d.queue:
			if !ok {
				return
			}
			_ = d.Dispatch(ctx, del)
		case <-ctx.Done():
			return
		}
	}
}

// Close stops accepting deliveries, lets the workers drain the queue and
// waits for them. Without Start, queued deliveries are discarded.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if started {
		d.wg.Wait()
		d.cancel()
	}
	return nil
}

// Stats returns a snapshot of dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Unknown:   d.unknown.Load(),
	}
}

func (d *Dispatcher) recordFailure(del Delivery, err error) {
	d.failed.Add(1)
	d.collector.IncDispatchFailure()
	if d.logger == nil {
		return
	}
	d.logger.Error("dispatch failed", map[string]any{
		"message_id":  del.MessageID,
		"original_id": del.OriginalID,
		"error":       err.Error(),
	})
}

func (d *Dispatcher) logDrop(del Delivery) {
	if d.logger == nil {
		return
	}
	d.logger.Warn("dispatch queue full, message dropped", map[string]any{
		"message_id":  del.MessageID,
		"original_id": del.OriginalID,
		"queue_size":  d.config.QueueSize,
	})
}
