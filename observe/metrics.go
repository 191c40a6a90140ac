package observe

import (
	"github.com/pithecene-io/stitch/metrics"
	"github.com/pithecene-io/stitch/types"
)

// MetricsObserver maps events onto collector counters.
// Buffered chunks produce no event; the receiver counts those.
type MetricsObserver struct {
	collector *metrics.Collector
}

// NewMetricsObserver creates a metrics observer. A nil collector is allowed.
func NewMetricsObserver(collector *metrics.Collector) *MetricsObserver {
	return &MetricsObserver{collector: collector}
}

// Observe implements reassembly.Observer.
func (o *MetricsObserver) Observe(ev types.Event) {
	switch ev.Kind {
	case types.EventKindCompleted:
		o.collector.IncCompleted(ev.TotalSize)
	case types.EventKindIncompleteAssemblyTimeout:
		o.collector.IncTimeout()
	case types.EventKindCapacityEviction:
		o.collector.IncCapacityEviction()
	case types.EventKindProtocolError:
		o.collector.IncRejected(ev.ErrorKind)
	case types.EventKindLateChunk:
		o.collector.IncLate()
	case types.EventKindDuplicateChunk:
		o.collector.IncDuplicate()
	}
}
