package giveaway

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrValidation             = errors.New("invalid giveaway request")
	ErrNotFound               = errors.New("giveaway not found")
	ErrAlreadyFinalized       = errors.New("giveaway already finalized")
	ErrStillActive            = errors.New("giveaway is still active")
	ErrCancelled              = errors.New("giveaway was cancelled")
	ErrNoEligibleParticipants = errors.New("no eligible participants")
	ErrEntriesClosed          = errors.New("giveaway is not accepting entries")

	// ErrFinalizeInProgress is returned when the caller stopped waiting for a
	// finalize that is still running.
	ErrFinalizeInProgress = errors.New("giveaway finalize still in progress")

	// ErrStaleRecord is returned by a Store when a guarded update matched no
	// row because the record left the expected status in the meantime.
	ErrStaleRecord = errors.New("giveaway record changed concurrently")
)

// PersistenceError wraps a failed Store call made while changing a giveaway.
type PersistenceError struct {
	Op  string
	ID  snowflake.ID
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("giveaway %s: store %s failed: %v", e.ID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func persistErr(op string, id snowflake.ID, err error) error {
	return &PersistenceError{Op: op, ID: id, Err: err}
}
