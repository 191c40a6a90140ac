package lode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
)

// ErrNoMetricsFound is returned when no metrics records exist in the dataset.
var ErrNoMetricsFound = errors.New("no metrics records found")

// NewReadDataset creates a Lode Dataset for reading with the same codec and
// layout as the write path.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// NewReadDatasetFS creates a read Dataset with filesystem storage.
func NewReadDatasetFS(dataset, rootPath string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(rootPath))
}

// NewReadDatasetS3 creates a read Dataset with S3 storage.
func NewReadDatasetS3(ctx context.Context, dataset string, s3cfg S3Config) (lode.Dataset, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// Summary aggregates journal records for one node (or all nodes).
type Summary struct {
	// EventsByKind counts event records by event kind.
	EventsByKind map[string]int64
	// ErrorsByKind counts protocol_error records by error kind.
	ErrorsByKind map[string]int64
	// Messages is the number of archived message records.
	Messages int64
	// MessageBytes is the sum of archived message sizes.
	MessageBytes int64
	// Snapshots is the number of dataset snapshots scanned.
	Snapshots int
}

// TotalEvents returns the number of event records.
func (s Summary) TotalEvents() int64 {
	var total int64
	for _, n := range s.EventsByKind {
		total += n
	}
	return total
}

// Summarize scans every snapshot and counts records. An empty nodeID
// matches all nodes.
func Summarize(ctx context.Context, ds lode.Dataset, nodeID string) (Summary, error) {
	sum := Summary{
		EventsByKind: make(map[string]int64),
		ErrorsByKind: make(map[string]int64),
	}

	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return sum, WrapReadError(err, "snapshots")
	}

	seen := make(map[string]struct{})

	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "node", nodeID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return sum, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}
		sum.Snapshots++

		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if nodeID != "" && toString(record["node"]) != nodeID {
				continue
			}
			if id := toString(record["record_id"]); id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			switch record["record_kind"] {
			case RecordKindEvent:
				sum.EventsByKind[toString(record["event_kind"])]++
				if ek := toString(record["error_kind"]); ek != "" {
					sum.ErrorsByKind[ek]++
				}
			case RecordKindMessage:
				sum.Messages++
				sum.MessageBytes += toInt64(record["size"])
			}
		}
	}
	return sum, nil
}

// QueryLatestMetrics finds the most recent metrics record. Filters by
// nodeID if non-empty. Returns ErrNoMetricsFound if none exist.
func QueryLatestMetrics(ctx context.Context, ds lode.Dataset, nodeID string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "kind", kindPartitionMetrics) {
			continue
		}
		if !snapshotMatchesFilter(snap, "node", nodeID) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}

		// Manifest paths are a coarse pre-filter; record fields are authoritative.
		var latest map[string]any
		var latestTs time.Time
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok || record["record_kind"] != RecordKindMetrics {
				continue
			}
			if nodeID != "" && toString(record["node"]) != nodeID {
				continue
			}
			ts, _ := time.Parse(time.RFC3339Nano, toString(record["ts"]))
			if latest == nil || ts.After(latestTs) {
				latest, latestTs = record, ts
			}
		}
		if latest != nil {
			return latest, nil
		}
	}
	return nil, ErrNoMetricsFound
}

// snapshotMatchesFilter reports whether any file in the snapshot lies under
// the key=value partition. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue matches an exact key=value path segment, so
// node=n-1 does not match node=n-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 handles int64 from direct writes and float64 from JSON round-trips.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
