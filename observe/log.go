package observe

import (
	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/types"
)

// LogObserver writes one structured log entry per event.
// Failures are logged at warn, everything else at debug.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver creates a log observer.
func NewLogObserver(logger *log.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Observe implements reassembly.Observer.
func (o *LogObserver) Observe(ev types.Event) {
	fields := map[string]any{
		"kind":       string(ev.Kind),
		"message_id": ev.MessageID,
	}
	if ev.OriginalID != "" {
		fields["original_id"] = ev.OriginalID
	}
	if ev.ChunkIndex != nil {
		fields["chunk_index"] = *ev.ChunkIndex
	}

	switch ev.Kind {
	case types.EventKindCompleted:
		fields["total_size"] = ev.TotalSize
		fields["chunks"] = ev.ExpectedChunks
		o.logger.Debug("message completed", fields)

	case types.EventKindIncompleteAssemblyTimeout, types.EventKindCapacityEviction:
		fields["received_count"] = ev.ReceivedCount
		fields["expected_chunks"] = ev.ExpectedChunks
		o.logger.Warn("message evicted", fields)

	case types.EventKindProtocolError:
		fields["error_kind"] = ev.ErrorKind
		o.logger.Warn("protocol error", fields)

	default:
		o.logger.Debug("chunk ignored", fields)
	}
}
