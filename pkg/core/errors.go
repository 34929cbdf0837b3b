package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised by the windowing and query engine.
type ErrorKind int

// Error kinds.
const (
	// SourceUnavailable means the file or query source is no longer valid,
	// typically because it was closed by a reset or rebind.
	SourceUnavailable ErrorKind = iota + 1
	// FetchFailed is a codec or engine read error.
	FetchFailed
	// QueryFailed is an engine compile or execution error.
	QueryFailed
	// AlreadyRunning rejects a second execution while one is in flight.
	AlreadyRunning
	// WriteFailed is an export error.
	WriteFailed
	// InvalidNavigation is an out-of-range navigation request. Callers
	// treat it as a no-op.
	InvalidNavigation
)

func (k ErrorKind) String() string {
	switch k {
	case SourceUnavailable:
		return "source unavailable"
	case FetchFailed:
		return "fetch failed"
	case QueryFailed:
		return "query failed"
	case AlreadyRunning:
		return "already running"
	case WriteFailed:
		return "write failed"
	case InvalidNavigation:
		return "invalid navigation"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrSourceUnavailable = &Error{Kind: SourceUnavailable}
	ErrFetchFailed       = &Error{Kind: FetchFailed}
	ErrQueryFailed       = &Error{Kind: QueryFailed}
	ErrAlreadyRunning    = &Error{Kind: AlreadyRunning}
	ErrWriteFailed       = &Error{Kind: WriteFailed}
	ErrInvalidNavigation = &Error{Kind: InvalidNavigation}
)

// Error is a classified engine error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrFetchFailed)
// holds for every fetch failure regardless of Op or cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds a classified error. err may be nil.
func Errorf(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or 0 when err is not classified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
