package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotInitialized is returned by every operation on a handle that has
	// not been bound to a database location.
	ErrNotInitialized = errors.New("granule store not initialized")

	// ErrDuplicateGranule matches any *DuplicateGranuleError via errors.Is.
	ErrDuplicateGranule = errors.New("duplicate granule")
)

// DuplicateGranuleError reports names submitted to InsertOrFail that already
// have a persisted record.
type DuplicateGranuleError struct {
	Names []string
}

func (e *DuplicateGranuleError) Error() string {
	return "A duplicate granule was found: " + strings.Join(e.Names, ", ")
}

func (e *DuplicateGranuleError) Is(target error) bool {
	return target == ErrDuplicateGranule
}

// ErrorKind classifies the error for callers that map failures to exit
// codes or log events.
func (e *DuplicateGranuleError) ErrorKind() string {
	return "duplicate"
}
