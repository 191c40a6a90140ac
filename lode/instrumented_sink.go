package lode

import (
	"context"

	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/types"
)

// InstrumentedSink wraps a policy.Sink and counts write outcomes on the
// collector. Each batch write increments lode_write_success or
// lode_write_failure once.
type InstrumentedSink struct {
	inner     policy.Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps a sink with metrics instrumentation.
func NewInstrumentedSink(inner policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

// WriteEvents delegates to the inner sink and records the outcome.
func (s *InstrumentedSink) WriteEvents(ctx context.Context, events []*types.Event) error {
	return s.record(s.inner.WriteEvents(ctx, events))
}

// WriteMessages delegates to the inner sink and records the outcome.
func (s *InstrumentedSink) WriteMessages(ctx context.Context, msgs []*types.ArchivedMessage) error {
	return s.record(s.inner.WriteMessages(ctx, msgs))
}

func (s *InstrumentedSink) record(err error) error {
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close delegates to the inner sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ policy.Sink = (*InstrumentedSink)(nil)
