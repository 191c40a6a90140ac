// Package reader is the read side of the stitch CLI: it opens a journal
// dataset and turns its records into views for render and tui.
package reader

import (
	"sort"

	"github.com/pithecene-io/stitch/lode"
	"github.com/pithecene-io/stitch/types"
)

// JournalStats is the stats view over journal event records.
type JournalStats struct {
	Node         string           `json:"node,omitempty"`
	Snapshots    int              `json:"snapshots"`
	TotalEvents  int64            `json:"total_events"`
	Completed    int64            `json:"completed"`
	Timeouts     int64            `json:"timeouts"`
	Evictions    int64            `json:"capacity_evictions"`
	Errors       int64            `json:"protocol_errors"`
	Duplicates   int64            `json:"duplicate_chunks"`
	LateChunks   int64            `json:"late_chunks"`
	Messages     int64            `json:"archived_messages"`
	MessageBytes int64            `json:"archived_bytes"`
	EventsByKind map[string]int64 `json:"events_by_kind"`
	ErrorsByKind map[string]int64 `json:"errors_by_kind"`
}

// KindCount is one row of a sorted count table.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// FromSummary builds the stats view. Every known event kind is present in
// EventsByKind, with zero when absent from the journal.
func FromSummary(node string, sum lode.Summary) *JournalStats {
	byKind := make(map[string]int64, len(sum.EventsByKind))
	for _, k := range types.AllEventKinds() {
		byKind[string(k)] = 0
	}
	for k, v := range sum.EventsByKind {
		byKind[k] = v
	}
	errs := make(map[string]int64, len(sum.ErrorsByKind))
	for k, v := range sum.ErrorsByKind {
		errs[k] = v
	}

	return &JournalStats{
		Node:         node,
		Snapshots:    sum.Snapshots,
		TotalEvents:  sum.TotalEvents(),
		Completed:    byKind[string(types.EventKindCompleted)],
		Timeouts:     byKind[string(types.EventKindIncompleteAssemblyTimeout)],
		Evictions:    byKind[string(types.EventKindCapacityEviction)],
		Errors:       byKind[string(types.EventKindProtocolError)],
		Duplicates:   byKind[string(types.EventKindDuplicateChunk)],
		LateChunks:   byKind[string(types.EventKindLateChunk)],
		Messages:     sum.Messages,
		MessageBytes: sum.MessageBytes,
		EventsByKind: byKind,
		ErrorsByKind: errs,
	}
}

// SortedCounts orders a count map by descending count, then kind.
func SortedCounts(m map[string]int64) []KindCount {
	out := make([]KindCount, 0, len(m))
	for k, v := range m {
		out = append(out, KindCount{Kind: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// MetricsSnapshot is the latest metrics record written at node shutdown.
type MetricsSnapshot struct {
	Ts      string `json:"ts"`
	Node    string `json:"node"`
	Cluster string `json:"cluster,omitempty"`

	// Receive path
	DatagramsReceived int64 `json:"datagrams_received"`
	BytesReceived     int64 `json:"bytes_received"`
	DecodeErrors      int64 `json:"decode_errors"`

	// Reassembly
	ChunksBuffered    int64            `json:"chunks_buffered"`
	MessagesCompleted int64            `json:"messages_completed"`
	BytesCompleted    int64            `json:"bytes_completed"`
	ChunksRejected    int64            `json:"chunks_rejected"`
	RejectedByKind    map[string]int64 `json:"rejected_by_kind,omitempty"`
	DuplicateChunks   int64            `json:"duplicate_chunks"`
	LateChunks        int64            `json:"late_chunks"`
	Timeouts          int64            `json:"timeouts"`
	CapacityEvictions int64            `json:"capacity_evictions"`

	// Dispatch
	DispatchSuccess int64 `json:"dispatch_success"`
	DispatchFailure int64 `json:"dispatch_failure"`
	DispatchDropped int64 `json:"dispatch_dropped"`

	// Journal
	EventsReceived  int64            `json:"events_received"`
	EventsPersisted int64            `json:"events_persisted"`
	EventsDropped   int64            `json:"events_dropped"`
	DroppedByKind   map[string]int64 `json:"dropped_by_kind,omitempty"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Dimensions
	Policy          string `json:"policy"`
	StorageBackend  string `json:"storage_backend"`
	DuplicatePolicy string `json:"duplicate_policy"`
}
