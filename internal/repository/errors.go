// Package repository holds the in-memory reservation store and the
// optional confirmation archive.  The sentinel errors below let the ticket
// service tell a lost race apart from a missing record.
package repository

import "errors"

// ErrOptimisticLock is returned when a create or update was computed from a
// snapshot that is no longer current: a seat has been taken in the meantime
// or the stored reservation carries a newer version.  The ticket service
// retries on it and never surfaces it to callers.
var ErrOptimisticLock = errors.New("optimistic lock")

// ErrReservationNotFound is returned when an update names a reservation id
// the store has never seen.
var ErrReservationNotFound = errors.New("reservation not found")
