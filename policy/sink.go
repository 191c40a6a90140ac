package policy

import (
	"context"
	"sync"

	"github.com/pithecene-io/stitch/types"
)

// Sink abstracts journal persistence for policies.
//
// Methods are batch-oriented to support both strict (batch of 1) and
// buffered policies.
type Sink interface {
	// WriteEvents persists a batch of events, preserving order.
	WriteEvents(ctx context.Context, events []*types.Event) error

	// WriteMessages persists a batch of archived messages, preserving order.
	WriteMessages(ctx context.Context, msgs []*types.ArchivedMessage) error

	// Close releases any resources held by the sink.
	Close() error
}

// WriteOp represents a write operation for ordering verification.
type WriteOp struct {
	Type     string // "events" or "messages"
	Events   []*types.Event
	Messages []*types.ArchivedMessage
}

// StubSink is a test sink that accepts writes without persisting.
type StubSink struct {
	mu sync.Mutex

	// EventsWritten is the total count of events written.
	EventsWritten int64
	// MessagesWritten is the total count of archived messages written.
	MessagesWritten int64
	// EventBatches is the number of WriteEvents calls.
	EventBatches int64
	// Closed indicates whether Close was called.
	Closed bool

	// WrittenEvents stores all written events for inspection.
	WrittenEvents []*types.Event
	// WrittenMessages stores all written messages for inspection.
	WrittenMessages []*types.ArchivedMessage

	// WriteOrder tracks the order of write operations.
	WriteOrder []WriteOp

	// ErrorOnWrite, if non-nil, is returned by every write.
	ErrorOnWrite error
}

// NewStubSink creates a new stub sink for testing.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteEvents records the events without persisting.
func (s *StubSink) WriteEvents(_ context.Context, events []*types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.EventBatches++
	s.EventsWritten += int64(len(events))
	s.WrittenEvents = append(s.WrittenEvents, events...)
	s.WriteOrder = append(s.WriteOrder, WriteOp{Type: "events", Events: events})
	return nil
}

// WriteMessages records the messages without persisting.
func (s *StubSink) WriteMessages(_ context.Context, msgs []*types.ArchivedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ErrorOnWrite != nil {
		return s.ErrorOnWrite
	}

	s.MessagesWritten += int64(len(msgs))
	s.WrittenMessages = append(s.WrittenMessages, msgs...)
	s.WriteOrder = append(s.WriteOrder, WriteOp{Type: "messages", Messages: msgs})
	return nil
}

// SetError sets the error returned by subsequent writes.
func (s *StubSink) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ErrorOnWrite = err
}

// Close marks the sink as closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Closed = true
	return nil
}

// Stats returns a snapshot of sink statistics.
func (s *StubSink) Stats() StubSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StubSinkStats{
		EventsWritten:   s.EventsWritten,
		MessagesWritten: s.MessagesWritten,
		EventBatches:    s.EventBatches,
		Closed:          s.Closed,
	}
}

// StubSinkStats is a snapshot of StubSink statistics.
type StubSinkStats struct {
	EventsWritten   int64
	MessagesWritten int64
	EventBatches    int64
	Closed          bool
}
