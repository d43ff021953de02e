// Package esedberr holds the exhaustive error taxonomy the core raises as
// sentinel errors, plus a small context-chain wrapper so a terminal error
// can carry the page number and slot index it failed on without every
// caller re-deriving that formatting.
//
// It has no dependencies so every other package in this module can import
// it without risking an import cycle (src/auth/auth_errors.go's shape,
// generalized to the whole module instead of one subsystem).
package esedberr

import (
	"errors"
	"fmt"
)

var (
	// ErrIo covers read/open/seek failures from the OS.
	ErrIo = errors.New("esedb: io error")
	// ErrShortRead means the file was truncated before an expected page.
	ErrShortRead = errors.New("esedb: short read")
	// ErrBadChecksum means a page's self-check failed.
	ErrBadChecksum = errors.New("esedb: bad page checksum")
	// ErrCorruptNode means slot arithmetic is inconsistent with page size.
	ErrCorruptNode = errors.New("esedb: corrupt node")
	// ErrCorruptPointer means a data definition's computed fields exceed
	// their valid range, or a child page number is 0.
	ErrCorruptPointer = errors.New("esedb: corrupt pointer")
	// ErrNotFound means a named table is absent.
	ErrNotFound = errors.New("esedb: not found")
	// ErrUnsupported means a feature the core does not handle was hit
	// (multi-valued long values, an unrecognized codepage).
	ErrUnsupported = errors.New("esedb: unsupported")
	// ErrLongValueGap means a long value's segments do not tile its range.
	ErrLongValueGap = errors.New("esedb: long value gap")
	// ErrOutOfMemory means a clone or buffer allocation failed.
	ErrOutOfMemory = errors.New("esedb: out of memory")
	// ErrAborted means the caller raised the abort flag.
	ErrAborted = errors.New("esedb: aborted")
	// ErrEndOfTable is the sentinel a walker returns once every pending
	// range has been consumed. It is not itself a failure, but it shares
	// the same terminal-error propagation path as one.
	ErrEndOfTable = errors.New("esedb: end of table")
)

// Fault wraps an underlying sentinel error with the function that raised
// it and the page/slot it was working on, when known.
type Fault struct {
	Func string
	Page uint32 // 0 if not applicable
	Slot int    // -1 if not applicable
	Err  error
}

func (f *Fault) Error() string {
	switch {
	case f.Page != 0 && f.Slot >= 0:
		return fmt.Sprintf("%s: page %d slot %d: %v", f.Func, f.Page, f.Slot, f.Err)
	case f.Page != 0:
		return fmt.Sprintf("%s: page %d: %v", f.Func, f.Page, f.Err)
	default:
		return fmt.Sprintf("%s: %v", f.Func, f.Err)
	}
}

func (f *Fault) Unwrap() error { return f.Err }

// Wrap builds a Fault; callers pass page 0 and slot -1 where either is not
// applicable. A nil err yields nil.
func Wrap(fn string, page uint32, slot int, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Func: fn, Page: page, Slot: slot, Err: err}
}
