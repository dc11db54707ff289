package lock

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by release and lookups when no lock state exists
// for the record.
var ErrNotFound = errors.New("lock state not found")

// ErrUnauthorized is returned when a caller operates on a lock held by
// someone else.
var ErrUnauthorized = errors.New("lock held by another holder")

// AlreadyLockedError reports a claim conflict, carrying the current holder so
// callers can show who to ask.
type AlreadyLockedError struct {
	SourceID string
	Holder   string
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("record %s is already locked by %s", e.SourceID, e.Holder)
}

// InvalidArgumentError reports a validation failure. These fail immediately,
// no retry.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
