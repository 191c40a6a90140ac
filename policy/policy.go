// Package policy controls how reassembly events and archived messages reach
// the journal sink.
//
// Four policies are available:
//   - strict: every record written immediately, sink errors returned
//   - buffered: bounded in-memory buffer, flushed on demand, droppable kinds shed first
//   - streaming: buffer flushed on a count or interval trigger, nothing dropped
//   - noop: records counted and discarded (journal disabled)
package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/stitch/types"
)

// Policy defines the journal ingestion interface.
//
// Droppable kinds (late_chunk, duplicate_chunk) may be shed under pressure.
// Every other event kind and every archived message must be persisted or
// produce an error.
type Policy interface {
	// IngestEvent handles one reassembly event.
	IngestEvent(ctx context.Context, ev *types.Event) error

	// IngestMessage handles one archived message. Messages are never dropped.
	IngestMessage(ctx context.Context, msg *types.ArchivedMessage) error

	// Flush writes any buffered data.
	Flush(ctx context.Context) error

	// Close flushes and releases the sink.
	Close() error

	// Stats returns a consistent point-in-time snapshot.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalEvents is the total number of events received.
	TotalEvents int64
	// EventsPersisted is the number of events persisted.
	EventsPersisted int64
	// EventsDropped is the total number of events dropped.
	EventsDropped int64
	// DroppedByKind maps event kinds to drop counts.
	DroppedByKind map[types.EventKind]int64
	// TotalMessages is the total number of archived messages received.
	TotalMessages int64
	// MessagesPersisted is the number of archived messages persisted.
	MessagesPersisted int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of sink errors encountered.
	Errors int64
}

// DroppedByKindStrings converts DroppedByKind for metrics.Collector, which
// does not import types.
func (s Stats) DroppedByKindStrings() map[string]int64 {
	out := make(map[string]int64, len(s.DroppedByKind))
	for k, v := range s.DroppedByKind {
		out[string(k)] = v
	}
	return out
}

// droppableKinds are the event kinds that carry no information about a
// message's fate.
var droppableKinds = map[types.EventKind]bool{
	types.EventKindLateChunk:      true,
	types.EventKindDuplicateChunk: true,
}

// IsDroppable returns true if the event kind may be dropped by policy.
func IsDroppable(kind types.EventKind) bool {
	return droppableKinds[kind]
}

// statsRecorder is an internal helper for thread-safe stats management.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotalEvents, snapshot, etc.)
//   - Buffered and streaming policies use the Locked methods only while
//     holding their own mu, keeping buffer state and counters atomic.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		stats: Stats{
			DroppedByKind: make(map[types.EventKind]int64),
		},
	}
}

func (r *statsRecorder) incTotalEvents() {
	r.mu.Lock()
	r.stats.TotalEvents++
	r.mu.Unlock()
}

func (r *statsRecorder) incEventsPersisted(n int64) {
	r.mu.Lock()
	r.stats.EventsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incTotalMessages() {
	r.mu.Lock()
	r.stats.TotalMessages++
	r.mu.Unlock()
}

func (r *statsRecorder) incMessagesPersisted(n int64) {
	r.mu.Lock()
	r.stats.MessagesPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(r.stats.BufferSize)
}

// --- Locked methods ---
// Caller must hold the owning policy's mu.

func (r *statsRecorder) incTotalEventsLocked() {
	r.stats.TotalEvents++
}

func (r *statsRecorder) incEventsPersistedLocked(n int64) {
	r.stats.EventsPersisted += n
}

func (r *statsRecorder) incEventsDroppedLocked(kind types.EventKind) {
	r.stats.EventsDropped++
	r.stats.DroppedByKind[kind]++
}

func (r *statsRecorder) incTotalMessagesLocked() {
	r.stats.TotalMessages++
}

func (r *statsRecorder) incMessagesPersistedLocked(n int64) {
	r.stats.MessagesPersisted += n
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns a copy of stats with the given bufferSize.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	s.DroppedByKind = make(map[types.EventKind]int64, len(r.stats.DroppedByKind))
	for k, v := range r.stats.DroppedByKind {
		s.DroppedByKind[k] = v
	}
	return s
}

// estimateEventSize returns a rough in-memory size for buffer accounting.
func estimateEventSize(ev *types.Event) int64 {
	return int64(128 + len(ev.MessageID) + len(ev.OriginalID) + len(ev.ErrorKind))
}

func estimateMessageSize(msg *types.ArchivedMessage) int64 {
	return int64(128 + len(msg.MessageID) + len(msg.OriginalID) + len(msg.Data))
}
