package database

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConcurrencyConflict indicates the row changed since it was read
	ErrConcurrencyConflict = errors.New("record was modified by another request")

	// ErrPackageHasBookings indicates a package delete blocked by existing bookings
	ErrPackageHasBookings = errors.New("package has bookings and cannot be deleted")
)

// PostgreSQL error codes
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func isPgError(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
