package policy_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/types"
)

func TestStrictPolicy_ImmediateWrite(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pol.IngestMessage(t.Context(), archived(1, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sinkStats := sink.Stats()
	if sinkStats.EventsWritten != 1 || sinkStats.EventBatches != 1 {
		t.Errorf("events written = %d in %d batches, want 1 in 1", sinkStats.EventsWritten, sinkStats.EventBatches)
	}
	if sinkStats.MessagesWritten != 1 {
		t.Errorf("messages written = %d, want 1", sinkStats.MessagesWritten)
	}

	stats := pol.Stats()
	if stats.TotalEvents != 1 || stats.EventsPersisted != 1 || stats.EventsDropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalMessages != 1 || stats.MessagesPersisted != 1 {
		t.Errorf("message stats = %+v", stats)
	}
}

func TestStrictPolicy_NoDrops(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	for i, kind := range types.AllEventKinds() {
		if err := pol.IngestEvent(t.Context(), event(kind, i)); err != nil {
			t.Fatalf("unexpected error for %s: %v", kind, err)
		}
	}

	stats := pol.Stats()
	if stats.EventsDropped != 0 {
		t.Errorf("strict policy should never drop, got %d drops", stats.EventsDropped)
	}
	if stats.EventsPersisted != int64(len(types.AllEventKinds())) {
		t.Errorf("EventsPersisted = %d", stats.EventsPersisted)
	}
}

func TestStrictPolicy_SinkError(t *testing.T) {
	sink := policy.NewStubSink()
	sink.ErrorOnWrite = errors.New("disk full")
	pol := policy.NewStrictPolicy(sink)

	if err := pol.IngestEvent(t.Context(), event(types.EventKindCompleted, 1)); err == nil {
		t.Fatal("expected sink error")
	}
	if err := pol.IngestMessage(t.Context(), archived(1, 1)); err == nil {
		t.Fatal("expected sink error")
	}

	stats := pol.Stats()
	if stats.Errors != 2 {
		t.Errorf("Errors = %d, want 2", stats.Errors)
	}
	if stats.EventsPersisted != 0 || stats.MessagesPersisted != 0 {
		t.Errorf("nothing should be persisted on failure: %+v", stats)
	}
}

func TestStrictPolicy_CloseClosesSink(t *testing.T) {
	sink := policy.NewStubSink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.Stats().Closed {
		t.Error("sink should be closed")
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", pol.Stats().FlushCount)
	}
}
