// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"io"
	"reflect"

	"go.uber.org/multierr"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseAll closes every non-nil closer in order and combines the errors.
// Use where shutdown must release everything even if one close fails:
//
//	return iox.CloseAll(receiver, dispatcher, journal)
func CloseAll(closers ...io.Closer) error {
	var err error
	for _, c := range closers {
		if isNil(c) {
			continue
		}
		err = multierr.Append(err, c.Close())
	}
	return err
}

// isNil reports whether c is nil or a typed nil pointer.
func isNil(c io.Closer) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
