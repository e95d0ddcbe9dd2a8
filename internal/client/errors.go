package client

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport classifies failures to establish or keep the connection.
	// They are retried while the retry budget lasts.
	ErrTransport = errors.New("transport error")

	// ErrRetryBudgetExhausted is terminal: no further automatic attempts are
	// made until Retry is called.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// TransportError wraps the cause of a dial failure or dropped connection.
// It matches both ErrTransport and the cause with errors.Is.
type TransportError struct {
	Op  string // "dial" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}
