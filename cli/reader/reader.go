package reader

import (
	"context"
	"errors"
	"fmt"

	lodelibrary "github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/stitch/lode"
)

// Source locates a journal dataset.
type Source struct {
	Dataset   string
	Backend   string // fs or s3
	Path      string // fs: directory, s3: bucket/prefix
	Region    string
	Endpoint  string
	PathStyle bool
}

// Reader answers stats queries against one journal dataset.
type Reader struct {
	ds lodelibrary.Dataset
}

// New wraps an open dataset.
func New(ds lodelibrary.Dataset) *Reader {
	return &Reader{ds: ds}
}

// Open opens the dataset described by src.
func Open(ctx context.Context, src Source) (*Reader, error) {
	if src.Path == "" {
		return nil, errors.New("journal path is required")
	}
	var (
		ds  lodelibrary.Dataset
		err error
	)
	switch src.Backend {
	case "fs", "":
		ds, err = lode.NewReadDatasetFS(src.Dataset, src.Path)
	case "s3":
		bucket, prefix := lode.ParseS3Path(src.Path)
		ds, err = lode.NewReadDatasetS3(ctx, src.Dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       src.Region,
			Endpoint:     src.Endpoint,
			UsePathStyle: src.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported journal backend: %s (must be fs or s3)", src.Backend)
	}
	if err != nil {
		return nil, err
	}
	return New(ds), nil
}

// Stats summarizes event and message records. An empty node matches all.
func (r *Reader) Stats(ctx context.Context, node string) (*JournalStats, error) {
	sum, err := lode.Summarize(ctx, r.ds, node)
	if err != nil {
		return nil, err
	}
	return FromSummary(node, sum), nil
}

// Metrics returns the most recent metrics snapshot.
func (r *Reader) Metrics(ctx context.Context, node string) (*MetricsSnapshot, error) {
	record, err := lode.QueryLatestMetrics(ctx, r.ds, node)
	if err != nil {
		return nil, err
	}
	return ParseMetricsRecord(record)
}
