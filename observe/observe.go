// Package observe fans reassembly events out to logging, metrics and the
// persistent journal.
//
// Every observer here is safe to call from the assembler's hot path: none
// of them perform I/O on the caller's goroutine.
package observe

import (
	"io"

	"go.uber.org/multierr"

	"github.com/pithecene-io/stitch/reassembly"
	"github.com/pithecene-io/stitch/types"
)

// Multi delivers each event to every observer in order.
type Multi struct {
	observers []reassembly.Observer
}

// NewMulti creates a fan-out observer. Nil observers are skipped.
func NewMulti(observers ...reassembly.Observer) *Multi {
	m := &Multi{}
	for _, o := range observers {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
	return m
}

// Observe implements reassembly.Observer.
func (m *Multi) Observe(ev types.Event) {
	for _, o := range m.observers {
		o.Observe(ev)
	}
}

// Close closes every observer that implements io.Closer and combines the
// errors.
func (m *Multi) Close() error {
	var err error
	for _, o := range m.observers {
		if c, ok := o.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

var _ reassembly.Observer = (*Multi)(nil)
