// Package failure classifies the errors that abort an activitygraph run.
//
// Every error that leaves a package boundary is wrapped in an *Error with a
// Kind, so the CLI and tests can tell a malformed document from an
// unreachable graph store without string matching.
package failure

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a failure.
type Kind string

const (
	// KindParse is a document that is not valid JSON or not valid Turtle.
	KindParse Kind = "parse"

	// KindFormat is a well-formed document with missing or mistyped fields.
	KindFormat Kind = "format"

	// KindIO is a local file that cannot be read or written.
	KindIO Kind = "io"

	// KindStore is a network or transaction failure against the graph store.
	KindStore Kind = "store"
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Parse wraps err as a ParseError.
func Parse(op string, err error) error { return New(KindParse, op, err) }

// Format wraps err as a FormatError.
func Format(op string, err error) error { return New(KindFormat, op, err) }

// IO wraps err as an IOError.
func IO(op string, err error) error { return New(KindIO, op, err) }

// Store wraps err as a StoreError.
func Store(op string, err error) error { return New(KindStore, op, err) }

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsParse returns true if err is a ParseError.
func IsParse(err error) bool { return Is(err, KindParse) }

// IsFormat returns true if err is a FormatError.
func IsFormat(err error) bool { return Is(err, KindFormat) }

// IsIO returns true if err is an IOError.
func IsIO(err error) bool { return Is(err, KindIO) }

// IsStore returns true if err is a StoreError.
func IsStore(err error) bool { return Is(err, KindStore) }
