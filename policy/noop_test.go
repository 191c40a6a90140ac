package policy_test

import (
	"testing"

	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/types"
)

func TestNoopPolicy_CountsWithoutPersisting(t *testing.T) {
	pol := policy.NewNoopPolicy()

	for i, kind := range types.AllEventKinds() {
		if err := pol.IngestEvent(t.Context(), event(kind, i)); err != nil {
			t.Fatalf("IngestEvent(%s): %v", kind, err)
		}
	}
	_ = pol.IngestMessage(t.Context(), archived(0, 1))
	_ = pol.Flush(t.Context())

	stats := pol.Stats()
	if stats.TotalEvents != 6 {
		t.Errorf("TotalEvents = %d, want 6", stats.TotalEvents)
	}
	if stats.EventsDropped != 2 || stats.EventsPersisted != 4 {
		t.Errorf("dropped/persisted = %d/%d, want 2/4", stats.EventsDropped, stats.EventsPersisted)
	}
	if stats.MessagesPersisted != 1 || stats.FlushCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if got := stats.DroppedByKindStrings()["late_chunk"]; got != 1 {
		t.Errorf("DroppedByKindStrings[late_chunk] = %d, want 1", got)
	}
	if err := pol.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
