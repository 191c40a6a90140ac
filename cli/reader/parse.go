package reader

import "errors"

// ParseMetricsRecord converts a Lode metrics record to a MetricsSnapshot.
// Numeric fields may be int64 (direct writes) or float64 (JSON round-trips).
func ParseMetricsRecord(record map[string]any) (*MetricsSnapshot, error) {
	if record == nil {
		return nil, errors.New("nil record")
	}

	snap := &MetricsSnapshot{
		Ts:      toString(record["ts"]),
		Node:    toString(record["node"]),
		Cluster: toString(record["cluster"]),

		DatagramsReceived: toInt64(record["datagrams_received"]),
		BytesReceived:     toInt64(record["bytes_received"]),
		DecodeErrors:      toInt64(record["decode_errors"]),

		ChunksBuffered:    toInt64(record["chunks_buffered"]),
		MessagesCompleted: toInt64(record["messages_completed"]),
		BytesCompleted:    toInt64(record["bytes_completed"]),
		ChunksRejected:    toInt64(record["chunks_rejected"]),
		RejectedByKind:    toCountMap(record["rejected_by_kind"]),
		DuplicateChunks:   toInt64(record["duplicate_chunks"]),
		LateChunks:        toInt64(record["late_chunks"]),
		Timeouts:          toInt64(record["timeouts"]),
		CapacityEvictions: toInt64(record["capacity_evictions"]),

		DispatchSuccess: toInt64(record["dispatch_success"]),
		DispatchFailure: toInt64(record["dispatch_failure"]),
		DispatchDropped: toInt64(record["dispatch_dropped"]),

		EventsReceived:  toInt64(record["events_received"]),
		EventsPersisted: toInt64(record["events_persisted"]),
		EventsDropped:   toInt64(record["events_dropped"]),
		DroppedByKind:   toCountMap(record["dropped_by_kind"]),

		LodeWriteSuccess: toInt64(record["lode_write_success"]),
		LodeWriteFailure: toInt64(record["lode_write_failure"]),

		Policy:          toString(record["policy"]),
		StorageBackend:  toString(record["storage_backend"]),
		DuplicatePolicy: toString(record["duplicate_policy"]),
	}

	// The write path always sets these; absence means a malformed record.
	if snap.Ts == "" {
		return nil, errors.New("metrics record missing required field: ts")
	}
	if snap.Node == "" {
		return nil, errors.New("metrics record missing required field: node")
	}
	if snap.Policy == "" {
		return nil, errors.New("metrics record missing required field: policy")
	}
	return snap, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toCountMap handles map[string]int64 (direct) and map[string]any (JSON).
func toCountMap(v any) map[string]int64 {
	switch m := v.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		result := make(map[string]int64, len(m))
		for k, val := range m {
			result[k] = toInt64(val)
		}
		return result
	default:
		return nil
	}
}
