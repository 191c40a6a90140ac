package types //nolint:revive // types is a valid package name

import (
	"testing"
)

func TestEventKind_IsFailure(t *testing.T) {
	tests := []struct {
		kind EventKind
		want bool
	}{
		{EventKindCompleted, false},
		{EventKindIncompleteAssemblyTimeout, true},
		{EventKindCapacityEviction, true},
		{EventKindProtocolError, false},
		{EventKindLateChunk, false},
		{EventKindDuplicateChunk, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := tt.kind.IsFailure()
			if got != tt.want {
				t.Errorf("EventKind(%q).IsFailure() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestAllEventKinds_Unique(t *testing.T) {
	seen := make(map[EventKind]bool)
	for _, k := range AllEventKinds() {
		if seen[k] {
			t.Errorf("duplicate event kind %q", k)
		}
		seen[k] = true
	}
	if len(seen) != 6 {
		t.Errorf("expected 6 event kinds, got %d", len(seen))
	}
}
