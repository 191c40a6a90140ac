package policy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// MaxBufferEvents is the maximum number of events to buffer.
	// Zero means no limit (use MaxBufferBytes instead).
	MaxBufferEvents int

	// MaxBufferBytes is the maximum buffer size in bytes (estimated).
	// Zero means no limit (use MaxBufferEvents instead).
	// At least one limit must be set.
	MaxBufferBytes int64

	// Logger is an optional logger for policy observability.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		MaxBufferEvents: 1000,
		MaxBufferBytes:  64 * 1024 * 1024, // 64 MB, archived messages included
	}
}

// ErrBufferFull is returned when the buffer is full and the record is non-droppable.
var ErrBufferFull = errors.New("buffer full: cannot accept non-droppable record")

// ErrInvalidConfig is returned when BufferedConfig is invalid.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxBufferEvents or MaxBufferBytes must be set")

// BufferedPolicy implements buffered persistence with drop rules.
//   - Bounded buffer with explicit limits
//   - May drop: late_chunk, duplicate_chunk
//   - Batch writes on Flush, messages before events
//   - On flush failure the batch is restored ahead of newer records
//     (at-least-once: a retried flush may duplicate)
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu            sync.Mutex // guards buffer state and stats
	eventBuffer   []*types.Event
	messageBuffer []*types.ArchivedMessage
	bufferBytes   int64
	stats         *statsRecorder

	// flushMu serializes flushes so restored batches keep their order.
	flushMu sync.Mutex
}

// NewBufferedPolicy creates a new buffered policy.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.MaxBufferEvents <= 0 && config.MaxBufferBytes <= 0 {
		return nil, ErrInvalidConfig
	}

	return &BufferedPolicy{
		sink:        sink,
		config:      config,
		logger:      config.Logger,
		eventBuffer: make([]*types.Event, 0, min(max(config.MaxBufferEvents, 100), 4096)),
		stats:       newStatsRecorder(),
	}, nil
}

// IngestEvent buffers the event, applying drop rules if the buffer is full.
//
// Drop strategy when full:
//   - droppable incoming event: drop it
//   - non-droppable incoming event: evict the oldest droppable event, or
//     return ErrBufferFull if there is none
func (p *BufferedPolicy) IngestEvent(_ context.Context, ev *types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalEventsLocked()
	size := estimateEventSize(ev)

	if p.hasRoomForEvent(size) {
		p.appendEvent(ev, size)
		return nil
	}

	if IsDroppable(ev.Kind) {
		p.stats.incEventsDroppedLocked(ev.Kind)
		p.logDrop(ev.Kind, "buffer_full")
		return nil
	}

	if p.dropOldestDroppable() && p.hasRoomForBytes(size) {
		p.appendEvent(ev, size)
		return nil
	}

	p.stats.incErrorsLocked()
	p.logBufferOverflow(string(ev.Kind))
	return ErrBufferFull
}

func (p *BufferedPolicy) appendEvent(ev *types.Event, size int64) {
	p.eventBuffer = append(p.eventBuffer, ev)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// IngestMessage buffers an archived message. Messages are never dropped;
// one that does not fit is an error. Requires MaxBufferBytes.
func (p *BufferedPolicy) IngestMessage(_ context.Context, msg *types.ArchivedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalMessagesLocked()

	if p.config.MaxBufferBytes <= 0 {
		p.stats.incErrorsLocked()
		return fmt.Errorf("%w: message buffering requires MaxBufferBytes to be set", ErrBufferFull)
	}

	size := estimateMessageSize(msg)
	if !p.hasRoomForBytes(size) {
		p.stats.incErrorsLocked()
		p.logBufferOverflow("message")
		return fmt.Errorf("%w: message of %d bytes would exceed buffer limit", ErrBufferFull, size)
	}

	p.messageBuffer = append(p.messageBuffer, msg)
	p.bufferBytes += size
	p.stats.setBufferSizeLocked(p.bufferBytes)
	return nil
}

// Flush writes all buffered messages, then all buffered events.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stats.incFlushLocked()
	events := p.eventBuffer
	msgs := p.messageBuffer
	if len(events) == 0 && len(msgs) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.eventBuffer = nil
	p.messageBuffer = nil
	p.recalculateBufferBytes()
	p.mu.Unlock()

	if len(msgs) > 0 {
		if err := p.sink.WriteMessages(ctx, msgs); err != nil {
			p.mu.Lock()
			p.stats.incErrorsLocked()
			p.eventBuffer = append(events, p.eventBuffer...)
			p.messageBuffer = append(msgs, p.messageBuffer...)
			p.recalculateBufferBytes()
			p.mu.Unlock()
			p.logFlushFailure("messages", err)
			return err
		}
		p.mu.Lock()
		p.stats.incMessagesPersistedLocked(int64(len(msgs)))
		p.mu.Unlock()
	}

	if len(events) > 0 {
		if err := p.sink.WriteEvents(ctx, events); err != nil {
			p.mu.Lock()
			p.stats.incErrorsLocked()
			p.eventBuffer = append(events, p.eventBuffer...)
			p.recalculateBufferBytes()
			p.mu.Unlock()
			p.logFlushFailure("events", err)
			return err
		}
		p.mu.Lock()
		p.stats.incEventsPersistedLocked(int64(len(events)))
		p.mu.Unlock()
	}

	return nil
}

// recalculateBufferBytes recalculates bufferBytes from all buffers. Caller must hold mu.
func (p *BufferedPolicy) recalculateBufferBytes() {
	var total int64
	for _, ev := range p.eventBuffer {
		total += estimateEventSize(ev)
	}
	for _, msg := range p.messageBuffer {
		total += estimateMessageSize(msg)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// Close flushes remaining data and closes the sink.
func (p *BufferedPolicy) Close() error {
	flushErr := p.Flush(context.Background())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns policy statistics.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

func (p *BufferedPolicy) hasRoomForEvent(size int64) bool {
	if p.config.MaxBufferEvents > 0 && len(p.eventBuffer) >= p.config.MaxBufferEvents {
		return false
	}
	return p.hasRoomForBytes(size)
}

func (p *BufferedPolicy) hasRoomForBytes(size int64) bool {
	return p.config.MaxBufferBytes <= 0 || p.bufferBytes+size <= p.config.MaxBufferBytes
}

// dropOldestDroppable removes the oldest droppable event from the buffer.
// Returns false if no droppable events exist. Caller must hold mu.
func (p *BufferedPolicy) dropOldestDroppable() bool {
	for i, ev := range p.eventBuffer {
		if IsDroppable(ev.Kind) {
			p.eventBuffer = append(p.eventBuffer[:i], p.eventBuffer[i+1:]...)
			p.bufferBytes -= estimateEventSize(ev)
			p.stats.setBufferSizeLocked(p.bufferBytes)
			p.stats.incEventsDroppedLocked(ev.Kind)
			p.logDrop(ev.Kind, "evicted_for_non_droppable")
			return true
		}
	}
	return false
}

// --- Logging helpers ---

func (p *BufferedPolicy) logDrop(kind types.EventKind, reason string) {
	if p.logger == nil {
		return
	}
	p.logger.Warn("event dropped", map[string]any{
		"event_kind": string(kind),
		"reason":     reason,
		"policy":     "buffered",
	})
}

func (p *BufferedPolicy) logBufferOverflow(record string) {
	if p.logger == nil {
		return
	}
	p.logger.Error("buffer overflow", map[string]any{
		"record": record,
		"policy": "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(bufferType string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("flush failed", map[string]any{
		"buffer_type": bufferType,
		"error":       err.Error(),
		"policy":      "buffered",
	})
}

var _ Policy = (*BufferedPolicy)(nil)
