package contract

import (
	"errors"
	"fmt"
)

// ErrReverted marks a mined transaction whose receipt status is 0.
var ErrReverted = errors.New("transaction reverted")

// NetworkError wraps a failed chain read or a failed confirmation wait.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// SubmissionError wraps a write that never reached the mempool.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string { return fmt.Sprintf("%s: submission failed: %v", e.Op, e.Err) }
func (e *SubmissionError) Unwrap() error { return e.Err }
