package policy_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/types"
)

func mustNewStreamingPolicy(t *testing.T, sink policy.Sink, config policy.StreamingConfig) *policy.StreamingPolicy {
	t.Helper()
	pol, err := policy.NewStreamingPolicy(sink, config)
	if err != nil {
		t.Fatalf("NewStreamingPolicy: %v", err)
	}
	t.Cleanup(func() { _ = pol.Close() })
	return pol
}

func TestStreamingPolicy_InvalidConfig(t *testing.T) {
	_, err := policy.NewStreamingPolicy(policy.NewStubSink(), policy.StreamingConfig{})
	if !errors.Is(err, policy.ErrStreamingInvalidConfig) {
		t.Errorf("err = %v, want ErrStreamingInvalidConfig", err)
	}
}

func TestStreamingPolicy_CountTrigger(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 3})

	for i := range 2 {
		_ = pol.IngestEvent(t.Context(), event(types.EventKindCompleted, i))
	}
	if sink.Stats().EventsWritten != 0 {
		t.Fatal("flushed before threshold")
	}

	if err := pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 2)); err != nil {
		t.Fatalf("IngestEvent: %v", err)
	}
	if sink.Stats().EventsWritten != 3 {
		t.Errorf("EventsWritten = %d, want 3", sink.Stats().EventsWritten)
	}
	if got := pol.FlushTriggerStats()[policy.FlushTriggerCount]; got != 1 {
		t.Errorf("count triggers = %d, want 1", got)
	}
}

func TestStreamingPolicy_NeverDrops(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	for i, kind := range types.AllEventKinds() {
		_ = pol.IngestEvent(t.Context(), event(kind, i))
	}
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	stats := pol.Stats()
	if stats.EventsDropped != 0 || stats.EventsPersisted != int64(len(types.AllEventKinds())) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStreamingPolicy_MessagesBeforeEvents(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	_ = pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 0))
	_ = pol.IngestMessage(t.Context(), archived(0, 4))
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if len(sink.WriteOrder) != 2 || sink.WriteOrder[0].Type != "messages" {
		t.Errorf("write order = %+v, want messages first", sink.WriteOrder)
	}
}

func TestStreamingPolicy_EventFailureAfterMessagesSucceeded(t *testing.T) {
	sink := newFailEventsSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushCount: 100})

	_ = pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 0))
	_ = pol.IngestMessage(t.Context(), archived(0, 4))

	if err := pol.Flush(t.Context()); err == nil {
		t.Fatal("expected event write failure")
	}
	if sink.Stats().MessagesWritten != 1 {
		t.Fatalf("messages written = %d, want 1", sink.Stats().MessagesWritten)
	}

	sink.failEvents = false
	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("retry Flush: %v", err)
	}
	if sink.Stats().MessagesWritten != 1 {
		t.Errorf("messages rewritten on retry: %d", sink.Stats().MessagesWritten)
	}
	if sink.Stats().EventsWritten != 1 {
		t.Errorf("EventsWritten = %d, want 1", sink.Stats().EventsWritten)
	}
}

func TestStreamingPolicy_IntervalTrigger(t *testing.T) {
	sink := policy.NewStubSink()
	pol := mustNewStreamingPolicy(t, sink, policy.StreamingConfig{FlushInterval: 10 * time.Millisecond})

	_ = pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 0))

	deadline := time.Now().Add(2 * time.Second)
	for sink.Stats().EventsWritten == 0 {
		if time.Now().After(deadline) {
			t.Fatal("interval flush did not fire")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := pol.FlushTriggerStats()[policy.FlushTriggerInterval]; got == 0 {
		t.Error("interval trigger not recorded")
	}
}

func TestStreamingPolicy_CloseIdempotent(t *testing.T) {
	sink := policy.NewStubSink()
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{FlushInterval: time.Hour})
	if err != nil {
		t.Fatalf("NewStreamingPolicy: %v", err)
	}
	_ = pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 0))

	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if sink.Stats().EventsWritten != 1 || !sink.Stats().Closed {
		t.Errorf("sink stats = %+v", sink.Stats())
	}
}

// failEventsSink fails WriteEvents while failEvents is set.
type failEventsSink struct {
	*policy.StubSink
	failEvents bool
}

func newFailEventsSink() *failEventsSink {
	return &failEventsSink{StubSink: policy.NewStubSink(), failEvents: true}
}

func (s *failEventsSink) WriteEvents(ctx context.Context, events []*types.Event) error {
	if s.failEvents {
		return errors.New("events unavailable")
	}
	return s.StubSink.WriteEvents(ctx, events)
}

func TestStreamingPolicy_CloseLogsTriggerCounts(t *testing.T) {
	var buf bytes.Buffer
	sink := policy.NewStubSink()
	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{
		FlushCount: 2,
		Logger:     log.NewNop().WithOutput(&buf),
	})
	if err != nil {
		t.Fatalf("NewStreamingPolicy: %v", err)
	}

	for i := range 2 {
		_ = pol.IngestEvent(t.Context(), event(types.EventKindCompleted, i))
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "streaming policy closed") {
		t.Fatalf("missing close entry in %s", out)
	}
	if !strings.Contains(out, `"count_flushes":1`) {
		t.Errorf("count_flushes not reported as 1 in %s", out)
	}
}
