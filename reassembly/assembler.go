package reassembly

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/stitch/types"
)

// Status is the outcome of Accept.
type Status int

const (
	// StatusBuffered means the chunk was stored and the message is incomplete.
	StatusBuffered Status = iota
	// StatusCompleted means the chunk completed its message; Result.Data holds the bytes.
	StatusCompleted
	// StatusRejected means the chunk was discarded; Result.Err says why.
	StatusRejected
	// StatusIgnored means the chunk was a duplicate or arrived after its message finished.
	StatusIgnored
)

func (s Status) String() string {
	switch s {
	case StatusBuffered:
		return "buffered"
	case StatusCompleted:
		return "completed"
	case StatusRejected:
		return "rejected"
	case StatusIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Result is returned by Accept for every chunk.
type Result struct {
	Status     Status
	MessageID  string
	OriginalID string
	// Data is set only for StatusCompleted.
	Data []byte
	// Err is set for StatusRejected, and for StatusIgnored when a
	// conflicting duplicate was dropped.
	Err error
}

// Observer receives reassembly events. Observe is called outside all table
// locks but on the caller's goroutine, so it must not block.
type Observer interface {
	Observe(ev types.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev types.Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev types.Event) { f(ev) }

// Assembler reassembles chunked messages.
//
// Accept is safe for concurrent use from any number of goroutines. Each
// message id completes at most once per Assembler. An Assembler owns its
// table; Close releases every buffer and stops the background sweeper.
type Assembler struct {
	cfg      Config
	observer Observer
	table    *Table
	closed   atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Assembler. A nil observer discards events.
// If cfg.SweepInterval is positive a background sweeper is started.
func New(cfg Config, observer Observer) (*Assembler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Assembler{
		cfg:      cfg,
		observer: observer,
		table:    newTable(cfg.Shards, cfg.MaxInFlightMessages, cfg.MaxTombstones),
		ctx:      ctx,
		cancel:   cancel,
	}

	if cfg.SweepInterval > 0 {
		a.wg.Add(1)
		go a.background()
	}
	return a, nil
}

// Config returns the effective configuration.
func (a *Assembler) Config() Config {
	return a.cfg
}

// InFlight returns the number of incomplete messages currently buffered.
func (a *Assembler) InFlight() int {
	return a.table.Len()
}

// Stats returns table occupancy.
func (a *Assembler) Stats() TableStats {
	return a.table.Stats()
}

// Accept processes one chunk. It never blocks on I/O.
func (a *Assembler) Accept(c *Chunk) Result {
	if c == nil {
		return Result{Status: StatusRejected, Err: newProtocolError(InvalidChunk, "", 0, "nil chunk")}
	}
	if a.closed.Load() {
		return Result{Status: StatusRejected, MessageID: c.MessageID, OriginalID: c.OriginalID, Err: ErrClosed}
	}

	now := a.cfg.Now()
	if err := c.Validate(); err != nil {
		return a.reject(c, a.headerErrorFirst(c, err), now)
	}

	s := a.table.shardFor(c.MessageID)
	for {
		s.mu.Lock()
		if a.closed.Load() {
			s.mu.Unlock()
			return Result{Status: StatusRejected, MessageID: c.MessageID, OriginalID: c.OriginalID, Err: ErrClosed}
		}

		if b, ok := s.buffers[c.MessageID]; ok {
			return a.acceptExistingLocked(s, b, c, now)
		}

		if until, ok := s.tombstones[c.MessageID]; ok && now.Before(until) {
			s.mu.Unlock()
			a.emit(types.Event{
				Kind:       types.EventKindLateChunk,
				MessageID:  c.MessageID,
				OriginalID: c.OriginalID,
				ChunkIndex: indexPtr(c.ChunkIndex),
				Ts:         now,
			})
			return Result{Status: StatusIgnored, MessageID: c.MessageID, OriginalID: c.OriginalID}
		}

		if c.TotalSize > a.cfg.MaxMessageSize {
			s.mu.Unlock()
			return a.reject(c, newProtocolError(MessageTooLarge, c.MessageID, c.ChunkIndex,
				"total_size %d exceeds limit %d", c.TotalSize, a.cfg.MaxMessageSize), now)
		}

		if c.NumberOfChunks == 1 {
			a.table.tombstoneLocked(s, c.MessageID, now.Add(a.cfg.TombstoneTTL))
			s.mu.Unlock()
			return a.complete(newSingleBuffer(c, now), now)
		}

		if !a.table.reserve() {
			s.mu.Unlock()
			if victim := a.table.evictOldest(now.Add(a.cfg.TombstoneTTL)); victim != nil {
				a.emitEviction(types.EventKindCapacityEviction, victim, now)
			}
			continue
		}

		b := newBuffer(c, now)
		b.insert(c)
		s.buffers[c.MessageID] = b
		s.mu.Unlock()
		return Result{Status: StatusBuffered, MessageID: c.MessageID, OriginalID: c.OriginalID}
	}
}

// headerErrorFirst reports a chunk whose header disagrees with an open
// buffer as InconsistentHeader even when the chunk is also invalid on its
// own.
func (a *Assembler) headerErrorFirst(c *Chunk, err error) error {
	if c.MessageID == "" {
		return err
	}
	s := a.table.shardFor(c.MessageID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buffers[c.MessageID]; ok {
		if herr := b.checkHeader(c); IsKind(herr, InconsistentHeader) {
			return herr
		}
	}
	return err
}

// acceptExistingLocked handles a chunk for an open buffer.
// Called with s.mu held; releases it before returning.
func (a *Assembler) acceptExistingLocked(s *shard, b *buffer, c *Chunk, now time.Time) Result {
	if err := b.checkHeader(c); err != nil {
		s.mu.Unlock()
		return a.reject(c, err, now)
	}

	switch b.insert(c) {
	case insertDuplicate:
		s.mu.Unlock()
		a.emit(types.Event{
			Kind:       types.EventKindDuplicateChunk,
			MessageID:  c.MessageID,
			OriginalID: b.originalID,
			ChunkIndex: indexPtr(c.ChunkIndex),
			Ts:         now,
		})
		return Result{Status: StatusIgnored, MessageID: c.MessageID, OriginalID: b.originalID}

	case insertConflict:
		s.mu.Unlock()
		err := newProtocolError(ConflictingChunk, c.MessageID, c.ChunkIndex,
			"payload differs from the chunk already stored at index %d", c.ChunkIndex)
		if a.cfg.DuplicatePolicy == RejectOnConflict {
			return a.reject(c, err, now)
		}
		a.emitProtocolError(c, err, now)
		return Result{Status: StatusIgnored, MessageID: c.MessageID, OriginalID: b.originalID, Err: err}

	case insertOverflow:
		s.mu.Unlock()
		return a.reject(c, newProtocolError(InvalidChunk, c.MessageID, c.ChunkIndex,
			"payload of %d bytes overflows total_size %d (%d bytes held for %d of %d chunks)",
			len(c.Payload), b.expectedSize, b.receivedBytes, b.received(), b.expectedChunks), now)
	}

	if !b.complete() {
		s.mu.Unlock()
		return Result{Status: StatusBuffered, MessageID: c.MessageID, OriginalID: b.originalID}
	}

	a.table.detachLocked(s, b, now.Add(a.cfg.TombstoneTTL))
	s.mu.Unlock()
	return a.complete(b, now)
}

// complete concatenates a detached buffer and reports the outcome.
func (a *Assembler) complete(b *buffer, now time.Time) Result {
	data, err := b.assemble()
	if err != nil {
		var pe *ProtocolError
		errors.As(err, &pe)
		a.emit(types.Event{
			Kind:           types.EventKindProtocolError,
			MessageID:      b.messageID,
			OriginalID:     b.originalID,
			TotalSize:      b.expectedSize,
			ReceivedCount:  b.received(),
			ExpectedChunks: b.expectedChunks,
			ErrorKind:      pe.Kind.String(),
			Ts:             now,
		})
		return Result{Status: StatusRejected, MessageID: b.messageID, OriginalID: b.originalID, Err: err}
	}

	a.emit(types.Event{
		Kind:           types.EventKindCompleted,
		MessageID:      b.messageID,
		OriginalID:     b.originalID,
		TotalSize:      b.expectedSize,
		ReceivedCount:  b.received(),
		ExpectedChunks: b.expectedChunks,
		Ts:             now,
	})
	return Result{Status: StatusCompleted, MessageID: b.messageID, OriginalID: b.originalID, Data: data}
}

func (a *Assembler) reject(c *Chunk, err error, now time.Time) Result {
	a.emitProtocolError(c, err, now)
	return Result{Status: StatusRejected, MessageID: c.MessageID, OriginalID: c.OriginalID, Err: err}
}

// Sweep evicts buffers older than MaxAssemblyAge and expired tombstones.
// Returns the number of buffers evicted.
func (a *Assembler) Sweep(now time.Time) int {
	expired := a.table.sweep(now, now.Add(-a.cfg.MaxAssemblyAge), now.Add(a.cfg.TombstoneTTL))
	for _, b := range expired {
		a.emitEviction(types.EventKindIncompleteAssemblyTimeout, b, now)
	}
	return len(expired)
}

// Close stops the sweeper and discards every in-flight buffer without
// emitting events. Accept returns ErrClosed afterwards. Close is idempotent.
func (a *Assembler) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.cancel()
	a.wg.Wait()
	a.table.drain()
	return nil
}

func (a *Assembler) background() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Sweep(a.cfg.Now())

		case <-a.ctx.Done():
			return
		}
	}
}

func (a *Assembler) emit(ev types.Event) {
	if a.observer != nil {
		a.observer.Observe(ev)
	}
}

func (a *Assembler) emitProtocolError(c *Chunk, err error, now time.Time) {
	ev := types.Event{
		Kind:           types.EventKindProtocolError,
		MessageID:      c.MessageID,
		OriginalID:     c.OriginalID,
		TotalSize:      c.TotalSize,
		ExpectedChunks: c.NumberOfChunks,
		ChunkIndex:     indexPtr(c.ChunkIndex),
		Ts:             now,
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		ev.ErrorKind = pe.Kind.String()
	}
	a.emit(ev)
}

func (a *Assembler) emitEviction(kind types.EventKind, b *buffer, now time.Time) {
	a.emit(types.Event{
		Kind:           kind,
		MessageID:      b.messageID,
		OriginalID:     b.originalID,
		TotalSize:      b.expectedSize,
		ReceivedCount:  b.received(),
		ExpectedChunks: b.expectedChunks,
		Ts:             now,
	})
}

func indexPtr(i uint32) *uint32 {
	return &i
}
