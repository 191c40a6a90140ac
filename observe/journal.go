package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/policy"
	"github.com/pithecene-io/stitch/reassembly"
	"github.com/pithecene-io/stitch/types"
)

// DefaultQueueSize is the journal queue capacity used when none is set.
const DefaultQueueSize = 4096

// ErrJournalClosed is returned by Archive after Close.
var ErrJournalClosed = errors.New("journal closed")

// JournalConfig configures a JournalObserver.
type JournalConfig struct {
	// QueueSize bounds records waiting for the writer goroutine.
	QueueSize int
	// FlushInterval flushes the policy periodically. Zero disables it;
	// the policy then flushes on its own triggers and at Close.
	FlushInterval time.Duration
	// Logger is optional.
	Logger *log.Logger
}

type journalRecord struct {
	event   *types.Event
	message *types.ArchivedMessage
}

// JournalObserver persists events and archived messages through a policy.
//
// Observe never blocks: when the queue is full the event is dropped and
// counted. Archive blocks until there is room or ctx is done, so archived
// payloads are only lost on shutdown. A single goroutine owns the policy.
type JournalObserver struct {
	policy policy.Policy
	config JournalConfig
	logger *log.Logger

	queue chan journalRecord
	stop  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex // guards closed; held shared while enqueueing
	closed bool

	dropMu        sync.Mutex
	dropped       int64
	droppedByKind map[types.EventKind]int64
}

// NewJournalObserver starts the writer goroutine over pol.
func NewJournalObserver(pol policy.Policy, config JournalConfig) *JournalObserver {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	j := &JournalObserver{
		policy:        pol,
		config:        config,
		logger:        config.Logger,
		queue:         make(chan journalRecord, config.QueueSize),
		stop:          make(chan struct{}),
		droppedByKind: make(map[types.EventKind]int64),
	}
	j.wg.Add(1)
	go j.run()
	return j
}

// Observe implements reassembly.Observer.
func (j *JournalObserver) Observe(ev types.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}

	select {
	case j.queue <- journalRecord{event: &ev}:
	default:
		j.countDrop(ev.Kind)
	}
}

func (j *JournalObserver) countDrop(kind types.EventKind) {
	j.dropMu.Lock()
	j.dropped++
	j.droppedByKind[kind]++
	j.dropMu.Unlock()
	if j.logger != nil {
		j.logger.Warn("journal queue full, event dropped", map[string]any{
			"kind": string(kind),
		})
	}
}

// Archive enqueues a reassembled message for persistence.
func (j *JournalObserver) Archive(ctx context.Context, msg *types.ArchivedMessage) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}

	select {
	case j.queue <- journalRecord{message: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *JournalObserver) run() {
	defer j.wg.Done()

	var tick <-chan time.Time
	if j.config.FlushInterval > 0 {
		ticker := time.NewTicker(j.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := context.Background()
	for {
		select {
		case rec := <-j.queue:
			j.ingest(ctx, rec)

		case <-tick:
			if err := j.policy.Flush(ctx); err != nil {
				j.logError("journal flush failed", err)
			}

		case <-j.stop:
			// Close holds the write lock, so nothing else is enqueued.
			for {
				select {
				case rec := <-j.queue:
					j.ingest(ctx, rec)
				default:
					return
				}
			}
		}
	}
}

func (j *JournalObserver) ingest(ctx context.Context, rec journalRecord) {
	var err error
	if rec.event != nil {
		err = j.policy.IngestEvent(ctx, rec.event)
	} else {
		err = j.policy.IngestMessage(ctx, rec.message)
	}
	if err != nil {
		j.logError("journal ingest failed", err)
	}
}

func (j *JournalObserver) logError(msg string, err error) {
	if j.logger == nil {
		return
	}
	j.logger.Error(msg, map[string]any{"error": err.Error()})
}

// Stats returns the policy stats with queue drops folded in.
func (j *JournalObserver) Stats() policy.Stats {
	stats := j.policy.Stats()

	j.dropMu.Lock()
	defer j.dropMu.Unlock()

	stats.TotalEvents += j.dropped
	stats.EventsDropped += j.dropped
	if len(j.droppedByKind) > 0 && stats.DroppedByKind == nil {
		stats.DroppedByKind = make(map[types.EventKind]int64, len(j.droppedByKind))
	}
	for k, v := range j.droppedByKind {
		stats.DroppedByKind[k] += v
	}
	return stats
}

// Close drains the queue, then flushes and closes the policy.
// Close is idempotent.
func (j *JournalObserver) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.stop)
	j.mu.Unlock()

	j.wg.Wait()
	return j.policy.Close()
}

var _ reassembly.Observer = (*JournalObserver)(nil)
