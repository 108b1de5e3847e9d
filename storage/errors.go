package storage

import (
	"errors"
	"fmt"
)

// Common connection errors.
var (
	// ErrNoTransaction is returned by Commit and Rollback outside a transaction.
	ErrNoTransaction = errors.New("no active transaction")

	// ErrTransactionActive is returned by Begin inside a transaction.
	ErrTransactionActive = errors.New("transaction already active")

	// ErrClosed is returned by any operation on a closed connection.
	ErrClosed = errors.New("connection closed")
)

// StatusError is a non-2xx response from the graph store.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}
