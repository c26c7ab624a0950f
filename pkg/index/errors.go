package index

import "errors"

var (
	// ErrDuplicateKey is returned when inserting a duplicate key in a unique index
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidKeySpec is returned for malformed index key specifications
	ErrInvalidKeySpec = errors.New("invalid index key specification")
)
