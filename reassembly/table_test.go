package reassembly

import (
	"testing"
	"time"
)

func TestTable_ReserveRespectsCapacity(t *testing.T) {
	tbl := newTable(4, 2, 0)
	if !tbl.reserve() || !tbl.reserve() {
		t.Fatal("expected two reservations to succeed")
	}
	if tbl.reserve() {
		t.Fatal("reservation beyond capacity succeeded")
	}
	tbl.release()
	if !tbl.reserve() {
		t.Fatal("reservation after release failed")
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
}

func TestTable_EvictOldestAcrossShards(t *testing.T) {
	tbl := newTable(8, 10, 0)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"newer", "oldest", "newest"} {
		c, _ := NewChunk(0, 4, id, "o", 2, []byte("ab"))
		created := base.Add(time.Duration(i) * time.Second)
		if id == "oldest" {
			created = base.Add(-time.Hour)
		}
		s := tbl.shardFor(id)
		if !tbl.reserve() {
			t.Fatal("reserve failed")
		}
		s.buffers[id] = newBuffer(c, created)
	}

	victim := tbl.evictOldest(base.Add(time.Minute))
	if victim == nil || victim.messageID != "oldest" {
		t.Fatalf("evicted %+v, want oldest", victim)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
	if _, ok := tbl.shardFor("oldest").tombstones["oldest"]; !ok {
		t.Error("evicted id should be tombstoned")
	}
}

func TestTable_EvictOldestEmpty(t *testing.T) {
	tbl := newTable(2, 1, 0)
	if b := tbl.evictOldest(time.Now()); b != nil {
		t.Fatalf("evicted %+v from empty table", b)
	}
}

func TestBuffer_InsertOutcomes(t *testing.T) {
	c0, _ := NewChunk(0, 4, "m", "o", 2, []byte("ab"))
	b := newBuffer(c0, time.Now())

	if got := b.insert(c0); got != insertStored {
		t.Fatalf("first insert = %d, want stored", got)
	}
	if got := b.insert(c0); got != insertDuplicate {
		t.Fatalf("repeat insert = %d, want duplicate", got)
	}
	other, _ := NewChunk(0, 4, "m", "o", 2, []byte("zz"))
	if got := b.insert(other); got != insertConflict {
		t.Fatalf("conflicting insert = %d, want conflict", got)
	}
	if string(b.slots[0]) != "ab" {
		t.Errorf("slot 0 = %q, first write must win", b.slots[0])
	}
	if b.complete() {
		t.Error("buffer with 1 of 2 chunks reported complete")
	}
}

func TestTable_TombstonesCappedPerShard(t *testing.T) {
	tbl := newTable(1, 4, 3)
	s := tbl.shards[0]
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.mu.Lock()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		tbl.tombstoneLocked(s, id, base.Add(time.Duration(i)*time.Second))
	}
	tbl.tombstoneLocked(s, "e", base.Add(time.Minute))
	s.mu.Unlock()

	if got := tbl.Stats().Tombstones; got != 3 {
		t.Fatalf("Tombstones = %d, want 3", got)
	}
	for _, id := range []string{"c", "d", "e"} {
		if _, ok := s.tombstones[id]; !ok {
			t.Errorf("tombstone %q dropped, want the earliest expiries dropped first", id)
		}
	}
	if s.tombstones["e"] != base.Add(time.Minute) {
		t.Errorf("re-tombstoning an id should refresh its expiry")
	}
}

func TestBuffer_InsertRefusesOverflow(t *testing.T) {
	c0, _ := NewChunk(0, 8, "m", "o", 4, []byte("abcde"))
	b := newBuffer(c0, time.Now())
	if got := b.insert(c0); got != insertStored {
		t.Fatalf("first insert = %d, want stored", got)
	}

	c1, _ := NewChunk(1, 8, "m", "o", 4, []byte("fghij"))
	if got := b.insert(c1); got != insertOverflow {
		t.Fatalf("insert = %d, want overflow", got)
	}
	if b.receivedBytes != 5 || len(b.slots) != 1 {
		t.Errorf("receivedBytes = %d slots = %d, buffer must be left untouched", b.receivedBytes, len(b.slots))
	}
}
