// Package types defines core domain types shared across stitch packages:
// wire frames, message envelopes, observable events and node identity.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// NodeMeta identifies the process receiving chunks.
// Every log entry and journal record carries these fields.
type NodeMeta struct {
	// NodeID is the node identifier. Must be non-empty.
	NodeID string
	// Cluster groups nodes that average the same parameter set. Optional.
	Cluster *string
}

// Validate checks identity rules:
//   - node_id must be non-empty
//   - node_id must not contain '/' or '=' (it is used as a partition value)
func (n *NodeMeta) Validate() error {
	if n.NodeID == "" {
		return errors.New("node_id must be non-empty")
	}
	if strings.ContainsAny(n.NodeID, "/=") {
		return fmt.Errorf("node_id %q must not contain '/' or '='", n.NodeID)
	}
	if n.Cluster != nil && *n.Cluster == "" {
		return errors.New("cluster must be non-empty when set")
	}
	return nil
}
