package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/types"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount triggers a flush after N events accumulate.
	// Zero means count-based flush is disabled.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero means interval-based flush is disabled.
	FlushInterval time.Duration

	// Logger is an optional logger for policy observability.
	Logger *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerShutdown indicates an explicit Flush or Close.
	FlushTriggerShutdown FlushTrigger = "shutdown"
)

// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy implements continuous persistence with batched writes.
//   - No drops: every record is persisted
//   - Buffer flushed when any trigger fires
//   - Messages are written before events
//   - On flush failure the batch is restored and retried on the next trigger
//
// mu guards buffer state; flushMu serializes writes so the interval
// goroutine and the count trigger never write concurrently.
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu            sync.Mutex
	eventBuffer   []*types.Event
	messageBuffer []*types.ArchivedMessage
	bufferBytes   int64
	stats         *statsRecorder
	triggers      map[FlushTrigger]int64
	stopped       bool

	flushMu sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewStreamingPolicy creates a new streaming policy.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:     sink,
		config:   config,
		logger:   config.Logger,
		stats:    newStatsRecorder(),
		triggers: make(map[FlushTrigger]int64),
		stopCh:   make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		p.wg.Add(1)
		go p.intervalLoop()
	}
	return p, nil
}

// IngestEvent adds the event to the buffer, flushing if the count
// threshold is reached.
func (p *StreamingPolicy) IngestEvent(ctx context.Context, ev *types.Event) error {
	p.mu.Lock()
	p.stats.incTotalEventsLocked()
	p.eventBuffer = append(p.eventBuffer, ev)
	p.bufferBytes += estimateEventSize(ev)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	shouldFlush := p.config.FlushCount > 0 && len(p.eventBuffer) >= p.config.FlushCount
	p.mu.Unlock()

	if shouldFlush {
		return p.triggerFlush(ctx, FlushTriggerCount)
	}
	return nil
}

// IngestMessage adds an archived message to the buffer.
func (p *StreamingPolicy) IngestMessage(_ context.Context, msg *types.ArchivedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalMessagesLocked()
	p.messageBuffer = append(p.messageBuffer, msg)
	p.bufferBytes += estimateMessageSize(msg)
	p.stats.setBufferSizeLocked(p.bufferBytes)
	return nil
}

// Flush writes all buffered data.
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerShutdown)
}

// triggerFlush swaps buffers under mu, writes outside mu, and restores the
// batch on failure so ingestion never waits on the sink.
func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.triggers[trigger]++
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
			p.logFlushFailure("messages", trigger, err)
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
			p.logFlushFailure("events", trigger, err)
			return err
		}
		p.mu.Lock()
		p.stats.incEventsPersistedLocked(int64(len(events)))
		p.mu.Unlock()
	}

	p.logFlush(trigger, len(events), len(msgs))
	return nil
}

// Close stops the interval goroutine, flushes and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()
	p.wg.Wait()

	flushErr := p.Flush(context.Background())
	p.logTriggers(p.FlushTriggerStats())
	return errors.Join(flushErr, p.sink.Close())
}

// Stats returns policy statistics.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns per-trigger flush counts.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[FlushTrigger]int64, len(p.triggers))
	for k, v := range p.triggers {
		out[k] = v
	}
	return out
}

func (p *StreamingPolicy) intervalLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.eventBuffer) > 0 || len(p.messageBuffer) > 0
			p.mu.Unlock()

			if hasData {
				// Errors are logged; the batch stays buffered for the next tick.
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// recalculateBufferBytes recalculates bufferBytes from all buffers. Caller must hold mu.
func (p *StreamingPolicy) recalculateBufferBytes() {
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

// --- Logging helpers ---

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, events, msgs int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("streaming flush", map[string]any{
		"trigger":  string(trigger),
		"events":   events,
		"messages": msgs,
		"policy":   "streaming",
	})
}

func (p *StreamingPolicy) logTriggers(triggers map[FlushTrigger]int64) {
	if p.logger == nil {
		return
	}
	p.logger.Info("streaming policy closed", map[string]any{
		"count_flushes":    triggers[FlushTriggerCount],
		"interval_flushes": triggers[FlushTriggerInterval],
		"shutdown_flushes": triggers[FlushTriggerShutdown],
		"policy":           "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(bufferType string, trigger FlushTrigger, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("streaming flush failed", map[string]any{
		"buffer_type": bufferType,
		"trigger":     string(trigger),
		"error":       err.Error(),
		"policy":      "streaming",
	})
}

var _ Policy = (*StreamingPolicy)(nil)
