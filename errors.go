package qsync

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalMonitorState is the panic value for releasing state that is
	// not held, and for awaiting or signalling a Condition without holding
	// its synchronizer exclusively.
	ErrIllegalMonitorState = errors.New("qsync: illegal monitor state")

	// ErrUnsupported is the panic value of UnsupportedPolicy methods.
	ErrUnsupported = errors.New("qsync: operation not supported by policy")

	// ErrInterrupted is returned when a wait is abandoned because its
	// context is done. Returned errors also match the context error.
	ErrInterrupted = errors.New("qsync: interrupted while waiting")
)

func interruptErr(cause error) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}
