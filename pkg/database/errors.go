package database

import "errors"

var (
	// ErrStoreUnavailable is returned by every operation once the database
	// has been closed
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrIndexNotFound is returned when dropping an index that does not exist
	ErrIndexNotFound = errors.New("index not found")

	// ErrCannotDropIDIndex is returned when dropping the _id index
	ErrCannotDropIDIndex = errors.New("cannot drop the _id index")

	// ErrInvalidDocument is returned for documents that cannot be stored
	ErrInvalidDocument = errors.New("invalid document")
)
