package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a stored record does not exist.
	ErrNotFound = errors.New("record not found")

	ErrDataMismatch = errors.New("stored data is different")
)

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
