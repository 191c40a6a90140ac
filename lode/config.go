// Package lode persists the stitch journal to a Lode dataset.
//
// Records are JSONL, Hive-partitioned by node, day and kind:
//
//	datasets/<dataset>/partitions/node=<id>/day=<YYYY-MM-DD>/kind=<kind>/...
//
// kind is the event kind for event records, "message" for archived
// payloads and "metrics" for shutdown snapshots.
package lode

import (
	"errors"
	"time"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "stitch"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"node", "day", "kind"}

// DeriveDay computes the partition day for a record timestamp.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// Config holds journal identity.
type Config struct {
	// Dataset is the Lode dataset ID. Defaults to DefaultDataset.
	Dataset string
	// NodeID is the node partition value (required).
	NodeID string
	// Cluster is recorded on every record when set.
	Cluster string
}

// Validate checks that the partition identity is present.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return errors.New("journal node id is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	return c
}
