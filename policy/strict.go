package policy

import (
	"context"

	"github.com/pithecene-io/stitch/types"
)

// StrictPolicy implements synchronous, unbuffered persistence.
//   - No buffering: each record is written immediately
//   - No drops
//   - Caller blocks on sink latency
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a new strict policy writing to the given sink.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{
		sink:  sink,
		stats: newStatsRecorder(),
	}
}

// IngestEvent writes the event immediately to the sink.
func (p *StrictPolicy) IngestEvent(ctx context.Context, ev *types.Event) error {
	p.stats.incTotalEvents()

	if err := p.sink.WriteEvents(ctx, []*types.Event{ev}); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incEventsPersisted(1)
	return nil
}

// IngestMessage writes the archived message immediately to the sink.
func (p *StrictPolicy) IngestMessage(ctx context.Context, msg *types.ArchivedMessage) error {
	p.stats.incTotalMessages()

	if err := p.sink.WriteMessages(ctx, []*types.ArchivedMessage{msg}); err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incMessagesPersisted(1)
	return nil
}

// Flush is a no-op for strict policy (nothing is buffered).
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the underlying sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

var _ Policy = (*StrictPolicy)(nil)
