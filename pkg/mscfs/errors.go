package mscfs

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when the listing cache cannot grow.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrInvalidArguments is returned for malformed paths and illegal selections.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrFileNotFound is returned when a resolved object is not on the card.
	ErrFileNotFound = errors.New("file not found")
)

// CardError carries an opaque negative status code from a Lister.
type CardError struct {
	Code int
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card error %d", e.Code)
}
