package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/stitch/types"
)

// NoopPolicy counts records and discards them. Used when the journal is
// disabled.
//
// Droppable kinds are counted as dropped; everything else is counted as
// persisted so stats keep the same shape as a real policy.
type NoopPolicy struct {
	mu    sync.Mutex
	stats *statsRecorder
}

// NewNoopPolicy creates a new no-op policy.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder()}
}

// IngestEvent accepts the event but does not persist it.
func (p *NoopPolicy) IngestEvent(_ context.Context, ev *types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalEventsLocked()
	if IsDroppable(ev.Kind) {
		p.stats.incEventsDroppedLocked(ev.Kind)
	} else {
		p.stats.incEventsPersistedLocked(1)
	}
	return nil
}

// IngestMessage accepts the message but does not persist it.
func (p *NoopPolicy) IngestMessage(_ context.Context, _ *types.ArchivedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incTotalMessagesLocked()
	p.stats.incMessagesPersistedLocked(1)
	return nil
}

// Flush is a no-op.
func (p *NoopPolicy) Flush(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.incFlushLocked()
	return nil
}

// Close is a no-op.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns the policy statistics.
func (p *NoopPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(0)
}

var _ Policy = (*NoopPolicy)(nil)
