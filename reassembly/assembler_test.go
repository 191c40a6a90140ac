package reassembly

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/stitch/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) Observe(ev types.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofKind(kind types.EventKind) []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestAssembler(t *testing.T, cfg Config) (*Assembler, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	rec := &recorder{}
	cfg.Now = clock.Now
	a, err := New(cfg, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, clock, rec
}

// split cuts data into chunks of at most size bytes.
func split(t *testing.T, messageID string, data []byte, size int) []*Chunk {
	t.Helper()
	n := (len(data) + size - 1) / size
	if n == 0 {
		n = 1
	}
	chunks := make([]*Chunk, 0, n)
	for i := range n {
		end := min((i+1)*size, len(data))
		c, err := NewChunk(uint32(i), uint64(len(data)), messageID, "orig-"+messageID, uint32(n), data[i*size:end])
		if err != nil {
			t.Fatalf("NewChunk(%d): %v", i, err)
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func TestAccept_OutOfOrderScenario(t *testing.T) {
	a, _, rec := newTestAssembler(t, Config{})
	chunks := split(t, "m1", []byte("AAABBBCCC"), 3)

	if r := a.Accept(chunks[2]); r.Status != StatusBuffered {
		t.Fatalf("chunk 2: status = %s, want buffered", r.Status)
	}
	if r := a.Accept(chunks[0]); r.Status != StatusBuffered {
		t.Fatalf("chunk 0: status = %s, want buffered", r.Status)
	}
	r := a.Accept(chunks[1])
	if r.Status != StatusCompleted {
		t.Fatalf("chunk 1: status = %s, want completed (err=%v)", r.Status, r.Err)
	}
	if string(r.Data) != "AAABBBCCC" {
		t.Errorf("data = %q, want AAABBBCCC", r.Data)
	}
	if r.MessageID != "m1" || r.OriginalID != "orig-m1" {
		t.Errorf("ids = (%s, %s), want (m1, orig-m1)", r.MessageID, r.OriginalID)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}

	completed := rec.ofKind(types.EventKindCompleted)
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed event, got %d", len(completed))
	}
	if completed[0].TotalSize != 9 || completed[0].OriginalID != "orig-m1" {
		t.Errorf("completed event = %+v", completed[0])
	}
}

func TestAccept_RoundTripAnyPermutation(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{})
	rng := rand.New(rand.NewPCG(1, 2))

	for trial := range 20 {
		data := make([]byte, 1+rng.IntN(4096))
		for i := range data {
			data[i] = byte(rng.UintN(256))
		}
		id := fmt.Sprintf("perm-%d", trial)
		chunks := split(t, id, data, 1+rng.IntN(256))
		rng.Shuffle(len(chunks), func(i, j int) { chunks[i], chunks[j] = chunks[j], chunks[i] })

		completions := 0
		for i, c := range chunks {
			r := a.Accept(c)
			switch r.Status {
			case StatusCompleted:
				completions++
				if i != len(chunks)-1 {
					t.Fatalf("%s: completed after %d of %d chunks", id, i+1, len(chunks))
				}
				if !bytes.Equal(r.Data, data) {
					t.Fatalf("%s: reassembled bytes differ", id)
				}
			case StatusBuffered:
			default:
				t.Fatalf("%s: unexpected status %s (err=%v)", id, r.Status, r.Err)
			}
		}
		if completions != 1 {
			t.Fatalf("%s: completions = %d, want 1", id, completions)
		}
	}
}

func TestAccept_DuplicateIsIdempotent(t *testing.T) {
	a, _, rec := newTestAssembler(t, Config{})
	chunks := split(t, "dup", []byte("abcdef"), 2)

	a.Accept(chunks[0])
	r := a.Accept(chunks[0])
	if r.Status != StatusIgnored {
		t.Fatalf("duplicate: status = %s, want ignored", r.Status)
	}
	if r.Err != nil {
		t.Errorf("duplicate: unexpected err %v", r.Err)
	}
	if n := len(rec.ofKind(types.EventKindDuplicateChunk)); n != 1 {
		t.Errorf("duplicate_chunk events = %d, want 1", n)
	}

	a.Accept(chunks[1])
	r = a.Accept(chunks[2])
	if r.Status != StatusCompleted || string(r.Data) != "abcdef" {
		t.Fatalf("status = %s data = %q, want completed abcdef", r.Status, r.Data)
	}
}

func TestAccept_ConflictingDuplicate(t *testing.T) {
	tests := []struct {
		name       string
		policy     DuplicatePolicy
		wantStatus Status
	}{
		{"ignore if identical keeps first write", IgnoreIfIdentical, StatusIgnored},
		{"reject on conflict", RejectOnConflict, StatusRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, rec := newTestAssembler(t, Config{DuplicatePolicy: tt.policy})
			chunks := split(t, "c", []byte("xxyyzz"), 2)

			a.Accept(chunks[0])
			forged, err := NewChunk(0, 6, "c", "orig-c", 3, []byte("QQ"))
			if err != nil {
				t.Fatalf("NewChunk: %v", err)
			}
			r := a.Accept(forged)
			if r.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s", r.Status, tt.wantStatus)
			}
			if !IsKind(r.Err, ConflictingChunk) {
				t.Errorf("err = %v, want conflicting_chunk", r.Err)
			}
			evs := rec.ofKind(types.EventKindProtocolError)
			if len(evs) != 1 || evs[0].ErrorKind != "conflicting_chunk" {
				t.Errorf("protocol_error events = %+v", evs)
			}

			a.Accept(chunks[1])
			r = a.Accept(chunks[2])
			if r.Status != StatusCompleted || string(r.Data) != "xxyyzz" {
				t.Fatalf("status = %s data = %q, want completed xxyyzz", r.Status, r.Data)
			}
		})
	}
}

func TestAccept_InconsistentHeaderThenCompletes(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{})
	chunks := split(t, "m2", []byte("aaaabbbbccccdddd"), 4)

	a.Accept(chunks[0])

	bad, err := NewChunk(1, 16, "m2", "orig-m2", 5, []byte("bbbb"))
	if err != nil {
		t.Fatalf("NewChunk: %v", err)
	}
	r := a.Accept(bad)
	if r.Status != StatusRejected || !IsKind(r.Err, InconsistentHeader) {
		t.Fatalf("status = %s err = %v, want rejected inconsistent_header", r.Status, r.Err)
	}

	badSize, err := NewChunk(1, 17, "m2", "orig-m2", 4, []byte("bbbb"))
	if err != nil {
		t.Fatalf("NewChunk: %v", err)
	}
	if r := a.Accept(badSize); !IsKind(r.Err, InconsistentHeader) {
		t.Fatalf("err = %v, want inconsistent_header", r.Err)
	}

	var last Result
	for _, c := range chunks[1:] {
		last = a.Accept(c)
	}
	if last.Status != StatusCompleted || string(last.Data) != "aaaabbbbccccdddd" {
		t.Fatalf("status = %s data = %q, want completed", last.Status, last.Data)
	}
}

func TestSweep_PartialTimeout(t *testing.T) {
	a, clock, rec := newTestAssembler(t, Config{MaxAssemblyAge: 30 * time.Second})
	chunks := split(t, "p", []byte("0123456789ab"), 3)

	for _, c := range chunks[:3] {
		a.Accept(c)
	}

	clock.Advance(29 * time.Second)
	if n := a.Sweep(clock.Now()); n != 0 {
		t.Fatalf("Sweep before deadline evicted %d", n)
	}

	clock.Advance(2 * time.Second)
	if n := a.Sweep(clock.Now()); n != 1 {
		t.Fatalf("Sweep evicted %d, want 1", n)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}

	evs := rec.ofKind(types.EventKindIncompleteAssemblyTimeout)
	if len(evs) != 1 {
		t.Fatalf("timeout events = %d, want 1", len(evs))
	}
	if evs[0].MessageID != "p" || evs[0].ReceivedCount != 3 || evs[0].ExpectedChunks != 4 {
		t.Errorf("timeout event = %+v", evs[0])
	}

	r := a.Accept(chunks[3])
	if r.Status != StatusIgnored {
		t.Errorf("chunk after timeout: status = %s, want ignored", r.Status)
	}
	if n := len(rec.ofKind(types.EventKindLateChunk)); n != 1 {
		t.Errorf("late_chunk events = %d, want 1", n)
	}
	if n := len(rec.ofKind(types.EventKindCompleted)); n != 0 {
		t.Errorf("completed events = %d, want 0", n)
	}
}

func TestAccept_CapacityEvictsOldest(t *testing.T) {
	a, clock, rec := newTestAssembler(t, Config{MaxInFlightMessages: 2})

	msgs := map[string][]*Chunk{
		"a": split(t, "a", []byte("a1a2"), 2),
		"b": split(t, "b", []byte("b1b2"), 2),
		"c": split(t, "c", []byte("c1c2"), 2),
	}
	for _, id := range []string{"a", "b", "c"} {
		if r := a.Accept(msgs[id][0]); r.Status != StatusBuffered {
			t.Fatalf("%s: status = %s, want buffered", id, r.Status)
		}
		if a.InFlight() > 2 {
			t.Fatalf("InFlight = %d exceeds limit", a.InFlight())
		}
		clock.Advance(time.Second)
	}

	evs := rec.ofKind(types.EventKindCapacityEviction)
	if len(evs) != 1 || evs[0].MessageID != "a" {
		t.Fatalf("capacity_eviction events = %+v, want one for a", evs)
	}

	for _, id := range []string{"b", "c"} {
		r := a.Accept(msgs[id][1])
		if r.Status != StatusCompleted {
			t.Errorf("%s: status = %s, want completed", id, r.Status)
		}
	}
	if r := a.Accept(msgs["a"][1]); r.Status != StatusIgnored {
		t.Errorf("evicted a: status = %s, want ignored", r.Status)
	}
}

func TestAccept_LateChunkAfterCompletion(t *testing.T) {
	a, _, rec := newTestAssembler(t, Config{})
	chunks := split(t, "late", []byte("hello world"), 4)
	for _, c := range chunks {
		a.Accept(c)
	}

	r := a.Accept(chunks[1])
	if r.Status != StatusIgnored {
		t.Fatalf("status = %s, want ignored", r.Status)
	}
	evs := rec.ofKind(types.EventKindLateChunk)
	if len(evs) != 1 || evs[0].ChunkIndex == nil || *evs[0].ChunkIndex != 1 {
		t.Errorf("late_chunk events = %+v", evs)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}
}

func TestSweep_ExpiresTombstones(t *testing.T) {
	a, clock, _ := newTestAssembler(t, Config{TombstoneTTL: 10 * time.Second})
	chunks := split(t, "t", []byte("abcd"), 2)
	a.Accept(chunks[0])
	a.Accept(chunks[1])

	if got := a.Stats().Tombstones; got != 1 {
		t.Fatalf("Tombstones = %d, want 1", got)
	}

	clock.Advance(11 * time.Second)
	a.Sweep(clock.Now())

	if got := a.Stats().Tombstones; got != 0 {
		t.Fatalf("Tombstones after sweep = %d, want 0", got)
	}
	if r := a.Accept(chunks[0]); r.Status != StatusBuffered {
		t.Errorf("status = %s, want buffered once tombstone expired", r.Status)
	}
}

func TestAccept_LengthMismatch(t *testing.T) {
	a, _, rec := newTestAssembler(t, Config{})

	c0, _ := NewChunk(0, 10, "short", "o", 2, []byte("abc"))
	c1, _ := NewChunk(1, 10, "short", "o", 2, []byte("def"))
	a.Accept(c0)
	r := a.Accept(c1)

	if r.Status != StatusRejected || !IsKind(r.Err, AssemblyLengthMismatch) {
		t.Fatalf("status = %s err = %v, want rejected assembly_length_mismatch", r.Status, r.Err)
	}
	if r.Data != nil {
		t.Error("rejected result must not carry data")
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}
	evs := rec.ofKind(types.EventKindProtocolError)
	if len(evs) != 1 || evs[0].ErrorKind != "assembly_length_mismatch" {
		t.Errorf("protocol_error events = %+v", evs)
	}
	if r := a.Accept(c0); r.Status != StatusIgnored {
		t.Errorf("chunk after mismatch: status = %s, want ignored", r.Status)
	}
}

func TestAccept_RejectedFirstChunkLeavesNoBuffer(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{MaxMessageSize: 8})

	big, err := NewChunk(0, 9, "big", "o", 3, []byte("abc"))
	if err != nil {
		t.Fatalf("NewChunk: %v", err)
	}
	r := a.Accept(big)
	if r.Status != StatusRejected || !IsKind(r.Err, MessageTooLarge) {
		t.Fatalf("status = %s err = %v, want rejected message_too_large", r.Status, r.Err)
	}

	outOfRange := &Chunk{ChunkIndex: 4, TotalSize: 4, MessageID: "oor", OriginalID: "o", NumberOfChunks: 2, Payload: []byte("ab")}
	r = a.Accept(outOfRange)
	if r.Status != StatusRejected || !IsKind(r.Err, IndexOutOfRange) {
		t.Fatalf("status = %s err = %v, want rejected index_out_of_range", r.Status, r.Err)
	}

	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}

	ok, _ := NewChunk(0, 4, "oor", "o", 2, []byte("ab"))
	if r := a.Accept(ok); r.Status != StatusBuffered {
		t.Errorf("valid chunk after rejection: status = %s, want buffered", r.Status)
	}
}

func TestAccept_SingleChunkMessage(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{})

	c, err := NewChunk(0, 5, "one", "o", 1, []byte("hello"))
	if err != nil {
		t.Fatalf("NewChunk: %v", err)
	}
	r := a.Accept(c)
	if r.Status != StatusCompleted || string(r.Data) != "hello" {
		t.Fatalf("status = %s data = %q, want completed hello", r.Status, r.Data)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}
	if r := a.Accept(c); r.Status != StatusIgnored {
		t.Errorf("repeat: status = %s, want ignored", r.Status)
	}

	empty, err := NewChunk(0, 0, "empty", "o", 1, nil)
	if err != nil {
		t.Fatalf("NewChunk(empty): %v", err)
	}
	if r := a.Accept(empty); r.Status != StatusCompleted || len(r.Data) != 0 {
		t.Errorf("empty: status = %s len = %d, want completed 0", r.Status, len(r.Data))
	}
}

func TestAccept_ConcurrentCompletesOnce(t *testing.T) {
	a, _, rec := newTestAssembler(t, Config{})

	data := bytes.Repeat([]byte("0123456789"), 100)
	chunks := split(t, "race", data, 7)

	var (
		wg          sync.WaitGroup
		completions atomic.Int32
	)
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(g), 7))
			order := rng.Perm(len(chunks))
			for _, i := range order {
				r := a.Accept(chunks[i])
				if r.Status == StatusCompleted {
					completions.Add(1)
					if !bytes.Equal(r.Data, data) {
						t.Error("reassembled bytes differ")
					}
				}
			}
		}()
	}
	wg.Wait()

	if n := completions.Load(); n != 1 {
		t.Fatalf("completions = %d, want 1", n)
	}
	if n := len(rec.ofKind(types.EventKindCompleted)); n != 1 {
		t.Errorf("completed events = %d, want 1", n)
	}
}

func TestAccept_ConcurrentDistinctMessages(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{Shards: 4})

	const messages = 64
	payloads := make([][]byte, messages)
	chunked := make([][]*Chunk, messages)
	for m := range messages {
		id := fmt.Sprintf("msg-%d", m)
		payloads[m] = []byte("payload for " + id)
		chunked[m] = split(t, id, payloads[m], 3)
	}

	var (
		wg          sync.WaitGroup
		completions atomic.Int32
	)
	for m := range messages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range chunked[m] {
				r := a.Accept(c)
				if r.Status == StatusCompleted {
					completions.Add(1)
					if !bytes.Equal(r.Data, payloads[m]) {
						t.Errorf("%s: reassembled bytes differ", r.MessageID)
					}
				}
			}
		}()
	}
	wg.Wait()

	if n := completions.Load(); n != messages {
		t.Fatalf("completions = %d, want %d", n, messages)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}
}

func TestClose_RejectsFurtherChunks(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{})
	chunks := split(t, "x", []byte("abcdef"), 2)
	a.Accept(chunks[0])

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight after Close = %d, want 0", a.InFlight())
	}
	r := a.Accept(chunks[1])
	if r.Status != StatusRejected || !errors.Is(r.Err, ErrClosed) {
		t.Errorf("status = %s err = %v, want rejected ErrClosed", r.Status, r.Err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestBackgroundSweeper(t *testing.T) {
	var timeouts atomic.Int32
	a, err := New(Config{
		MaxAssemblyAge: 20 * time.Millisecond,
		SweepInterval:  5 * time.Millisecond,
	}, ObserverFunc(func(ev types.Event) {
		if ev.Kind == types.EventKindIncompleteAssemblyTimeout {
			timeouts.Add(1)
		}
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	c, _ := NewChunk(0, 4, "stale", "o", 2, []byte("ab"))
	a.Accept(c)

	deadline := time.Now().Add(2 * time.Second)
	for timeouts.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweeper did not evict stale buffer")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if a.InFlight() != 0 {
		t.Errorf("InFlight = %d, want 0", a.InFlight())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{DuplicatePolicy: "sometimes"}, nil); err == nil {
		t.Fatal("expected error for unknown duplicate policy")
	}
	if _, err := New(Config{MaxInFlightMessages: -1}, nil); err == nil {
		t.Fatal("expected error for negative capacity")
	}
}

func TestAccept_BufferedBytesNeverExceedTotalSize(t *testing.T) {
	a, _, rec := newTestAssembler(t, Config{})
	total := uint64(100)

	for i := uint32(0); i < 99; i++ {
		c := &Chunk{ChunkIndex: i, TotalSize: total, MessageID: "m", OriginalID: "o", NumberOfChunks: 100, Payload: bytes.Repeat([]byte("x"), 100)}
		if r := a.Accept(c); r.Status != StatusRejected || !IsKind(r.Err, InvalidChunk) {
			t.Fatalf("chunk %d: status = %s err = %v, want rejected invalid_chunk", i, r.Status, r.Err)
		}
	}
	if a.InFlight() != 0 {
		t.Fatalf("InFlight = %d, want 0", a.InFlight())
	}

	// Each chunk fits alone, but two of them cannot share total_size.
	for i := uint32(0); i < 4; i++ {
		c, err := NewChunk(i, 8, "n", "o", 4, []byte("abcde"))
		if err != nil {
			t.Fatalf("NewChunk(%d): %v", i, err)
		}
		r := a.Accept(c)
		if i == 0 && r.Status != StatusBuffered {
			t.Fatalf("first chunk: status = %s, want buffered", r.Status)
		}
		if i > 0 && (r.Status != StatusRejected || !IsKind(r.Err, InvalidChunk)) {
			t.Fatalf("chunk %d: status = %s err = %v, want rejected invalid_chunk", i, r.Status, r.Err)
		}

		s := a.table.shardFor("n")
		s.mu.Lock()
		held := s.buffers["n"].receivedBytes
		s.mu.Unlock()
		if held > 8 {
			t.Fatalf("buffered %d bytes for total_size 8", held)
		}
	}
	if got := len(rec.ofKind(types.EventKindProtocolError)); got != 99+3 {
		t.Errorf("protocol_error events = %d, want %d", got, 99+3)
	}

	// Honest chunks still complete the message.
	for i, p := range []string{"b", "c", "d"} {
		c, _ := NewChunk(uint32(i+1), 8, "n", "o", 4, []byte(p))
		r := a.Accept(c)
		if i == 2 && (r.Status != StatusCompleted || string(r.Data) != "abcdebcd") {
			t.Fatalf("status = %s data = %q, want completed abcdebcd", r.Status, r.Data)
		}
	}
}

func TestAccept_HeaderMismatchPrecedesFieldValidation(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{})
	chunks := split(t, "h", []byte("aabbcc"), 2)
	a.Accept(chunks[0])

	// Invalid alone (3 chunks cannot fit 2 bytes) and disagrees with the open buffer.
	mismatched := &Chunk{ChunkIndex: 1, TotalSize: 2, MessageID: "h", OriginalID: "orig-h", NumberOfChunks: 3, Payload: []byte("b")}
	if r := a.Accept(mismatched); r.Status != StatusRejected || !IsKind(r.Err, InconsistentHeader) {
		t.Fatalf("status = %s err = %v, want rejected inconsistent_header", r.Status, r.Err)
	}

	// Without an open buffer the same chunk is simply invalid.
	mismatched.MessageID = "fresh"
	if r := a.Accept(mismatched); !IsKind(r.Err, InvalidChunk) {
		t.Fatalf("err = %v, want invalid_chunk", r.Err)
	}
}

func TestAccept_SingleChunkFloodKeepsTombstonesBounded(t *testing.T) {
	a, _, _ := newTestAssembler(t, Config{Shards: 4, MaxTombstones: 40})

	for i := range 1000 {
		c, err := NewChunk(0, 1, fmt.Sprintf("one-%d", i), "o", 1, []byte("x"))
		if err != nil {
			t.Fatalf("NewChunk: %v", err)
		}
		if r := a.Accept(c); r.Status != StatusCompleted {
			t.Fatalf("message %d: status = %s, want completed", i, r.Status)
		}
	}
	if got := a.table.Stats().Tombstones; got > 40 {
		t.Errorf("Tombstones = %d, want <= 40", got)
	}

	// The most recent id is still remembered.
	last, _ := NewChunk(0, 1, "one-999", "o", 1, []byte("x"))
	if r := a.Accept(last); r.Status != StatusIgnored {
		t.Errorf("late chunk for recent id: status = %s, want ignored", r.Status)
	}
}
