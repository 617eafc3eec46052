// Package fault defines the error kinds shared by the planner, the tracker and
// the persistence layer. Callers compare with errors.Is.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed or insufficient data. The operation that
	// returns it aborts without mutating any state.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIOTransient marks a file that is temporarily locked, missing or
	// unreadable. It is retried and logged, never surfaced as fatal.
	ErrIOTransient = errors.New("transient io error")

	// ErrOptimizationInProgress is returned when an optimization is requested
	// while another one is still running.
	ErrOptimizationInProgress = errors.New("optimization already in progress")

	// ErrOptimizationTimeout is returned when the time budget is exhausted
	// before any feasible tour exists.
	ErrOptimizationTimeout = errors.New("optimization timed out")

	// ErrPersistence marks an atomic write that could not complete.
	ErrPersistence = errors.New("persistence failure")
)

// Invalid returns an error wrapping ErrInvalidInput with a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Transient wraps err as ErrIOTransient. A nil err returns nil.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrIOTransient, op, err)
}

// Persistence wraps err as ErrPersistence. A nil err returns nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
