package lode

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/types"
)

// Journal is a Lode-backed implementation of policy.Sink.
// Every write produces one dataset snapshot.
type Journal struct {
	dataset lode.Dataset
	config  Config

	mu sync.Mutex // serializes dataset writes
}

// NewJournal creates a journal over filesystem storage rooted at root.
func NewJournal(cfg Config, root string) (*Journal, error) {
	return NewJournalWithFactory(cfg, lode.NewFSFactory(root))
}

// NewJournalWithFactory creates a journal with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewJournalWithFactory(cfg Config, factory lode.StoreFactory) (*Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &Journal{dataset: ds, config: cfg}, nil
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteEvents writes a batch of events, preserving order.
func (j *Journal) WriteEvents(ctx context.Context, events []*types.Event) error {
	if len(events) == 0 {
		return nil
	}
	records := make([]any, 0, len(events))
	for _, ev := range events {
		records = append(records, withRecordID(toEventRecordMap(ev, j.config)))
	}
	return j.write(ctx, records)
}

// WriteMessages writes a batch of archived messages, preserving order.
func (j *Journal) WriteMessages(ctx context.Context, msgs []*types.ArchivedMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	records := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		records = append(records, withRecordID(toMessageRecordMap(msg, j.config)))
	}
	return j.write(ctx, records)
}

// WriteMetrics writes a single metrics snapshot record stamped with ts.
func (j *Journal) WriteMetrics(ctx context.Context, snap metrics.Snapshot, ts time.Time) error {
	return j.write(ctx, []any{withRecordID(toMetricsRecordMap(snap, j.config, ts))})
}

// withRecordID stamps a unique id so readers can count each record once
// however snapshots overlap.
func withRecordID(m map[string]any) map[string]any {
	m["record_id"] = uuid.NewString()
	return m
}

func (j *Journal) write(ctx context.Context, records []any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, j.config.Dataset)
	}
	return nil
}

// Dataset returns the underlying dataset for read-back.
func (j *Journal) Dataset() lode.Dataset {
	return j.dataset
}

// Close releases journal resources. Datasets hold no open handles.
func (j *Journal) Close() error {
	return nil
}

var _ policy.Sink = (*Journal)(nil)
