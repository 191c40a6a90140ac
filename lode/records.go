package lode

import (
	"time"

	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/types"
)

// RecordKind discriminator values.
const (
	RecordKindEvent   = "event"
	RecordKindMessage = "message"
	RecordKindMetrics = "metrics"
)

// Partition values for non-event records.
const (
	kindPartitionMessage = "message"
	kindPartitionMetrics = "metrics"
)

// Lode HiveLayout requires records as map[string]any with the partition
// keys present on every record.

func toEventRecordMap(ev *types.Event, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind": RecordKindEvent,
		"event_kind":  string(ev.Kind),
		"message_id":  ev.MessageID,
		"ts":          ev.Ts.UTC().Format(time.RFC3339Nano),
		"node":        cfg.NodeID,
		"day":         DeriveDay(ev.Ts),
		"kind":        string(ev.Kind),
	}
	if ev.OriginalID != "" {
		m["original_id"] = ev.OriginalID
	}
	if ev.TotalSize != 0 {
		m["total_size"] = ev.TotalSize
	}
	if ev.ExpectedChunks != 0 {
		m["received_count"] = ev.ReceivedCount
		m["expected_chunks"] = ev.ExpectedChunks
	}
	if ev.ChunkIndex != nil {
		m["chunk_index"] = *ev.ChunkIndex
	}
	if ev.ErrorKind != "" {
		m["error_kind"] = ev.ErrorKind
	}
	if cfg.Cluster != "" {
		m["cluster"] = cfg.Cluster
	}
	return m
}

func toMessageRecordMap(msg *types.ArchivedMessage, cfg Config) map[string]any {
	m := map[string]any{
		"record_kind":  RecordKindMessage,
		"message_id":   msg.MessageID,
		"original_id":  msg.OriginalID,
		"message_type": string(msg.Type),
		"size":         msg.Size,
		"data":         msg.Data, // base64 in JSON
		"ts":           msg.Ts.UTC().Format(time.RFC3339Nano),
		"node":         cfg.NodeID,
		"day":          DeriveDay(msg.Ts),
		"kind":         kindPartitionMessage,
	}
	if cfg.Cluster != "" {
		m["cluster"] = cfg.Cluster
	}
	return m
}

func toMetricsRecordMap(snap metrics.Snapshot, cfg Config, ts time.Time) map[string]any {
	m := map[string]any{
		"record_kind": RecordKindMetrics,
		"ts":          ts.UTC().Format(time.RFC3339Nano),
		"node":        cfg.NodeID,
		"day":         DeriveDay(ts),
		"kind":        kindPartitionMetrics,

		"datagrams_received": snap.DatagramsReceived,
		"bytes_received":     snap.BytesReceived,
		"decode_errors":      snap.DecodeErrors,

		"chunks_buffered":    snap.ChunksBuffered,
		"messages_completed": snap.MessagesCompleted,
		"bytes_completed":    snap.BytesCompleted,
		"chunks_rejected":    snap.ChunksRejected,
		"rejected_by_kind":   snap.RejectedByKind,
		"duplicate_chunks":   snap.DuplicateChunks,
		"late_chunks":        snap.LateChunks,
		"timeouts":           snap.Timeouts,
		"capacity_evictions": snap.CapacityEvictions,

		"dispatch_success": snap.DispatchSuccess,
		"dispatch_failure": snap.DispatchFailure,
		"dispatch_dropped": snap.DispatchDropped,

		"events_received":  snap.EventsReceived,
		"events_persisted": snap.EventsPersisted,
		"events_dropped":   snap.EventsDropped,
		"dropped_by_kind":  snap.DroppedByKind,

		"lode_write_success": snap.LodeWriteSuccess,
		"lode_write_failure": snap.LodeWriteFailure,

		"policy":           snap.Policy,
		"storage_backend":  snap.StorageBackend,
		"duplicate_policy": snap.DuplicatePolicy,
	}
	if cfg.Cluster != "" {
		m["cluster"] = cfg.Cluster
	}
	return m
}
