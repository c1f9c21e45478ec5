package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by all services. Transports map these onto HTTP
// statuses and machine-stable kinds; everything else is an internal fault.
var (
	// ErrBadRequest is returned for malformed input or missing required fields.
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden is returned when the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a referenced entity is absent or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when a book has no copy left to lend.
	ErrUnavailable = errors.New("book not available")
	// ErrAlreadyBorrowed is returned when the user already holds an active loan of the book.
	ErrAlreadyBorrowed = errors.New("book already borrowed by user")
	// ErrStoreUnavailable marks failures of the underlying SQL store.
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)
	ErrLoanNotFound = fmt.Errorf("active loan %w", ErrNotFound)
)

// StoreError marks err as a store failure while keeping the original chain intact.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrStoreUnavailable, err))
}
