// Package metrics provides per-node counters for the receive, reassembly,
// dispatch and journal paths.
//
// The Collector is a leaf package with no internal dependencies. Event kinds
// and error kinds are passed as strings. Journal ingestion counters are
// absorbed from policy.Stats at shutdown rather than recorded live, avoiding
// double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Receive path
	DatagramsReceived int64
	BytesReceived     int64
	DecodeErrors      int64

	// Reassembly
	ChunksBuffered    int64
	MessagesCompleted int64
	BytesCompleted    int64
	ChunksRejected    int64
	RejectedByKind    map[string]int64
	DuplicateChunks   int64
	LateChunks        int64
	Timeouts          int64
	CapacityEvictions int64

	// Dispatch
	DispatchSuccess int64
	DispatchFailure int64
	DispatchDropped int64

	// Journal (absorbed from policy.Stats at shutdown)
	EventsReceived  int64
	EventsPersisted int64
	EventsDropped   int64
	DroppedByKind   map[string]int64

	// Lode / Storage
	LodeWriteSuccess int64
	LodeWriteFailure int64

	// Dimensions (informational, set at construction)
	NodeID          string
	Policy          string
	StorageBackend  string
	DuplicatePolicy string
}

// Collector accumulates metrics for one node process.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	datagramsReceived int64
	bytesReceived     int64
	decodeErrors      int64

	chunksBuffered    int64
	messagesCompleted int64
	bytesCompleted    int64
	chunksRejected    int64
	rejectedByKind    map[string]int64
	duplicateChunks   int64
	lateChunks        int64
	timeouts          int64
	capacityEvictions int64

	dispatchSuccess int64
	dispatchFailure int64
	dispatchDropped int64

	eventsReceived  int64
	eventsPersisted int64
	eventsDropped   int64
	droppedByKind   map[string]int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	nodeID          string
	policy          string
	storageBackend  string
	duplicatePolicy string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(nodeID, policy, storageBackend, duplicatePolicy string) *Collector {
	return &Collector{
		rejectedByKind:  make(map[string]int64),
		droppedByKind:   make(map[string]int64),
		nodeID:          nodeID,
		policy:          policy,
		storageBackend:  storageBackend,
		duplicatePolicy: duplicatePolicy,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Receive path ---

// IncDatagram records one received datagram or stream frame of n bytes.
func (c *Collector) IncDatagram(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.datagramsReceived++
	c.bytesReceived += int64(n)
	c.mu.Unlock()
}

// IncDecodeError records a frame that could not be decoded into a chunk.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.add(&c.decodeErrors, 1)
}

// --- Reassembly ---

// IncBuffered records a chunk stored into an incomplete message.
func (c *Collector) IncBuffered() {
	if c == nil {
		return
	}
	c.add(&c.chunksBuffered, 1)
}

// IncCompleted records a reassembled message of n bytes.
func (c *Collector) IncCompleted(n uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.messagesCompleted++
	c.bytesCompleted += int64(n) //nolint:gosec // message sizes are bounded by config
	c.mu.Unlock()
}

// IncRejected records a discarded chunk or message by error kind.
func (c *Collector) IncRejected(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksRejected++
	c.rejectedByKind[kind]++
	c.mu.Unlock()
}

// IncDuplicate records an identical repeated chunk.
func (c *Collector) IncDuplicate() {
	if c == nil {
		return
	}
	c.add(&c.duplicateChunks, 1)
}

// IncLate records a chunk for an already finished message.
func (c *Collector) IncLate() {
	if c == nil {
		return
	}
	c.add(&c.lateChunks, 1)
}

// IncTimeout records an incomplete message evicted for age.
func (c *Collector) IncTimeout() {
	if c == nil {
		return
	}
	c.add(&c.timeouts, 1)
}

// IncCapacityEviction records an incomplete message evicted for capacity.
func (c *Collector) IncCapacityEviction() {
	if c == nil {
		return
	}
	c.add(&c.capacityEvictions, 1)
}

// --- Dispatch ---

// IncDispatchSuccess records a handler that returned nil.
func (c *Collector) IncDispatchSuccess() {
	if c == nil {
		return
	}
	c.add(&c.dispatchSuccess, 1)
}

// IncDispatchFailure records a handler error or undecodable message.
func (c *Collector) IncDispatchFailure() {
	if c == nil {
		return
	}
	c.add(&c.dispatchFailure, 1)
}

// IncDispatchDropped records a completed message dropped because the
// dispatch queue was full.
func (c *Collector) IncDispatchDropped() {
	if c == nil {
		return
	}
	c.add(&c.dispatchDropped, 1)
}

// --- Lode / Storage ---
// Lode counters are per-call, not per-record. A single WriteEvents call
// with N events counts as 1 success.

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteSuccess, 1)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.lodeWriteFailure, 1)
}

// --- Journal (absorbed from policy.Stats) ---

// AbsorbPolicyStats copies journal counters from policy.Stats into the collector.
// Called once at shutdown with the final policy stats snapshot.
func (c *Collector) AbsorbPolicyStats(totalEvents, persisted, dropped int64, droppedByKind map[string]int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsReceived = totalEvents
	c.eventsPersisted = persisted
	c.eventsDropped = dropped
	c.droppedByKind = make(map[string]int64, len(droppedByKind))
	for k, v := range droppedByKind {
		c.droppedByKind[k] = v
	}
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		DatagramsReceived: c.datagramsReceived,
		BytesReceived:     c.bytesReceived,
		DecodeErrors:      c.decodeErrors,

		ChunksBuffered:    c.chunksBuffered,
		MessagesCompleted: c.messagesCompleted,
		BytesCompleted:    c.bytesCompleted,
		ChunksRejected:    c.chunksRejected,
		RejectedByKind:    copyCounts(c.rejectedByKind),
		DuplicateChunks:   c.duplicateChunks,
		LateChunks:        c.lateChunks,
		Timeouts:          c.timeouts,
		CapacityEvictions: c.capacityEvictions,

		DispatchSuccess: c.dispatchSuccess,
		DispatchFailure: c.dispatchFailure,
		DispatchDropped: c.dispatchDropped,

		EventsReceived:  c.eventsReceived,
		EventsPersisted: c.eventsPersisted,
		EventsDropped:   c.eventsDropped,
		DroppedByKind:   copyCounts(c.droppedByKind),

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		NodeID:          c.nodeID,
		Policy:          c.policy,
		StorageBackend:  c.storageBackend,
		DuplicatePolicy: c.duplicatePolicy,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
