package lock

import (
	"errors"
	"fmt"
)

var (
	// ErrLockNotFound is returned by Refresh for unknown or expired tokens.
	ErrLockNotFound = errors.New("lock not found")

	// ErrInvalidLock is returned when a lock request is malformed: unknown
	// scope, unsupported depth, empty resource, or a reserved or reused token.
	ErrInvalidLock = errors.New("invalid lock")
)

// ConflictError reports that a resource is protected by locks the caller
// does not hold. Locks is a snapshot of the offending active locks.
//
// Detect it with errors.As:
//
//	var conflict *lock.ConflictError
//	if errors.As(err, &conflict) {
//	    // render conflict.Locks
//	}
type ConflictError struct {
	Resource string
	Locks    []Lock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %s is locked (%d active lock(s))", e.Resource, len(e.Locks))
}
