// Package reassembly rebuilds large messages from numbered chunks.
//
// Senders split a message into NumberOfChunks chunks that share a
// MessageID, TotalSize and NumberOfChunks. Chunks may arrive out of order,
// more than once, or not at all. The Assembler buffers them per message id
// and hands back the concatenated bytes exactly once.
//
// Buffer lifecycle:
//
//	           first valid chunk
//	┌────────┐  (slot reserved)  ┌───────────┐
//	│ Absent │ ────────────────► │ Buffering │ ◄──┐ stored, duplicate
//	└────────┘                   └─────┬─────┘    │ or rejected chunk
//	     ▲                             ├──────────┘
//	     │                             │ received == expected
//	     │                             ▼
//	     │                       ┌──────────┐  length ok   ┌───────────┐
//	     │                       │ Detached │ ───────────► │ Completed │
//	     │                       └────┬─────┘              └─────┬─────┘
//	     │                            │ length mismatch          │
//	     │                            ▼                          ▼
//	     │                       ┌──────────┐            ┌────────────┐
//	     │                       │ Dropped  │ ─────────► │ Tombstoned │
//	     │                       └──────────┘            └─────┬──────┘
//	     │                                                     │
//	     └──────────────── tombstone_ttl elapses ──────────────┘
//
// Timeout and capacity eviction move a Buffering message straight to
// Tombstoned. A single-chunk message goes from Absent to Detached.
//
// Chunks for a tombstoned id are Ignored as late chunks.
//
// Locking: the table is split into shards keyed by xxhash of the message id.
// A chunk only ever takes its own shard's lock. Concatenation and observer
// callbacks run after that lock is released. Capacity eviction scans shards
// one at a time.
//
// Observable events (types.Event) are delivered to an Observer:
//   - completed
//   - incomplete_assembly_timeout
//   - capacity_eviction
//   - protocol_error (with error_kind)
//   - late_chunk
//   - duplicate_chunk
package reassembly
