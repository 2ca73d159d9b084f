// Package kerr defines the error taxonomy shared by every stage of a
// detection pass. It is adapted from the teacher's ComplexError pattern
// (originally pkg/commands/errors.go): a small error code carried alongside
// an xerrors.Frame so a pass-aborting error can still be printed with a
// stack trace at the top level, the way the teacher wraps errors with
// go-errors at its main.go boundary.
package kerr

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Code classifies a failure the way spec.md's error taxonomy names it.
type Code int

const (
	// NotFound is transient: the process vanished between enumeration and
	// read. Expected, non-fatal, handled with a local skip.
	NotFound Code = iota
	// PermissionDenied means the observer cannot inspect a given process.
	// Per-process; local skip with optional debug log.
	PermissionDenied
	// Io covers any other kernel-view reader failure. Per-process skip.
	Io
	// OutOfMemory is fatal for the current pass.
	OutOfMemory
	// InvalidArgument marks a programming error; it is surfaced, not
	// absorbed.
	InvalidArgument
	// GraphFull means the resource allocation graph's pre-declared
	// capacity was exhausted. The pass fails with this error; no partial
	// graph is produced.
	GraphFull
	// InvalidFormat marks a parser rejection of one kernel-view record.
	// Per-record skip.
	InvalidFormat
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "NotFound"
	case PermissionDenied:
		return "PermissionDenied"
	case Io:
		return "Io"
	case OutOfMemory:
		return "OutOfMemory"
	case InvalidArgument:
		return "InvalidArgument"
	case GraphFull:
		return "GraphFull"
	case InvalidFormat:
		return "InvalidFormat"
	default:
		return "Unknown"
	}
}

// Error is a taxonomy-coded error that also carries a captured stack frame
// for diagnostics at the pass-abort boundary.
type Error struct {
	Code    Code
	Message string
	frame   xerrors.Frame
}

// New constructs a coded error, capturing the caller's frame.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		frame:   xerrors.Caller(1),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FormatError implements xerrors.Formatter so callers can print a stack
// trace for pass-aborting errors the same way the teacher's ComplexError
// does.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s", e.Code, e.Message)
	e.frame.Format(p)
	return nil
}

func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// Is reports whether err is a *Error with the given code.
func Is(err error, code Code) bool {
	var ce *Error
	if xerrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Fatal reports whether a code aborts the whole pass rather than being
// absorbed as a per-process/per-record skip.
func (c Code) Fatal() bool {
	return c == OutOfMemory || c == GraphFull || c == InvalidArgument
}
