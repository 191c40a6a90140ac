package reassembly

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// shard is one independently locked partition of the table.
type shard struct {
	mu      sync.Mutex
	buffers map[string]*buffer
	// tombstones maps finished message ids to their expiry.
	tombstones map[string]time.Time
}

// Table maps message ids to in-flight buffers.
//
// Ids are partitioned across shards by xxhash so that unrelated messages
// rarely contend. The in-flight count is a reservation counter shared by all
// shards; a buffer may only be created after a successful reserve.
type Table struct {
	shards   []*shard
	inFlight atomic.Int64
	capacity int64
	// tombstoneCap bounds len(shard.tombstones); zero means unbounded.
	tombstoneCap int
}

// TableStats is a point-in-time view of table occupancy.
type TableStats struct {
	InFlight   int
	Tombstones int
	Capacity   int
}

func newTable(shards, capacity, maxTombstones int) *Table {
	t := &Table{
		shards:   make([]*shard, shards),
		capacity: int64(capacity),
	}
	if maxTombstones > 0 {
		t.tombstoneCap = max(1, maxTombstones/shards)
	}
	for i := range t.shards {
		t.shards[i] = &shard{
			buffers:    make(map[string]*buffer),
			tombstones: make(map[string]time.Time),
		}
	}
	return t
}

func (t *Table) shardFor(messageID string) *shard {
	return t.shards[xxhash.Sum64String(messageID)%uint64(len(t.shards))]
}

// Len returns the number of in-flight buffers.
func (t *Table) Len() int {
	return int(t.inFlight.Load())
}

// Stats returns occupancy counters. Shards are visited one at a time, so the
// result is not an atomic snapshot across shards.
func (t *Table) Stats() TableStats {
	stats := TableStats{
		InFlight: t.Len(),
		Capacity: int(t.capacity),
	}
	for _, s := range t.shards {
		s.mu.Lock()
		stats.Tombstones += len(s.tombstones)
		s.mu.Unlock()
	}
	return stats
}

// reserve claims one in-flight slot. Returns false when the table is full.
func (t *Table) reserve() bool {
	for {
		n := t.inFlight.Load()
		if n >= t.capacity {
			return false
		}
		if t.inFlight.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (t *Table) release() {
	t.inFlight.Add(-1)
}

// detachLocked removes a buffer and tombstones its id.
// Caller must hold s.mu.
func (t *Table) detachLocked(s *shard, b *buffer, tombstoneUntil time.Time) {
	delete(s.buffers, b.messageID)
	t.tombstoneLocked(s, b.messageID, tombstoneUntil)
	t.release()
}

// tombstoneLocked records a finished id. A full shard first drops the
// tombstone closest to expiry, so a late chunk for that id may reopen a
// buffer that later times out.
// Caller must hold s.mu.
func (t *Table) tombstoneLocked(s *shard, messageID string, until time.Time) {
	if _, ok := s.tombstones[messageID]; !ok && t.tombstoneCap > 0 && len(s.tombstones) >= t.tombstoneCap {
		var (
			victim      string
			victimUntil time.Time
		)
		for id, u := range s.tombstones {
			if victim == "" || u.Before(victimUntil) {
				victim, victimUntil = id, u
			}
		}
		delete(s.tombstones, victim)
	}
	s.tombstones[messageID] = until
}

// evictOldest removes the buffer with the oldest createdAt across all shards.
// At most one shard lock is held at a time. Returns nil if the table is empty
// or the candidate disappeared before it could be removed.
func (t *Table) evictOldest(tombstoneUntil time.Time) *buffer {
	var (
		oldest      *buffer
		oldestShard *shard
	)
	for _, s := range t.shards {
		s.mu.Lock()
		for _, b := range s.buffers {
			if oldest == nil || b.createdAt.Before(oldest.createdAt) {
				oldest = b
				oldestShard = s
			}
		}
		s.mu.Unlock()
	}
	if oldest == nil {
		return nil
	}

	oldestShard.mu.Lock()
	defer oldestShard.mu.Unlock()
	// Pointer comparison: the id may have completed and been reopened meanwhile.
	if current, ok := oldestShard.buffers[oldest.messageID]; !ok || current != oldest {
		return nil
	}
	t.detachLocked(oldestShard, oldest, tombstoneUntil)
	return oldest
}

// sweep removes buffers created before cutoff and tombstones that expired.
func (t *Table) sweep(now, cutoff, tombstoneUntil time.Time) []*buffer {
	var expired []*buffer
	for _, s := range t.shards {
		s.mu.Lock()
		for _, b := range s.buffers {
			if b.createdAt.Before(cutoff) {
				expired = append(expired, b)
				t.detachLocked(s, b, tombstoneUntil)
			}
		}
		for id, until := range s.tombstones {
			if !now.Before(until) {
				delete(s.tombstones, id)
			}
		}
		s.mu.Unlock()
	}
	return expired
}

// drain removes every buffer and tombstone. Used on shutdown.
func (t *Table) drain() []*buffer {
	var drained []*buffer
	for _, s := range t.shards {
		s.mu.Lock()
		for id, b := range s.buffers {
			drained = append(drained, b)
			delete(s.buffers, id)
			t.release()
		}
		clear(s.tombstones)
		s.mu.Unlock()
	}
	return drained
}
