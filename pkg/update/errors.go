package update

import "errors"

var (
	// ErrInvalidUpdate is returned for malformed update documents
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrUnknownOperator is returned for operators the parser does not support
	ErrUnknownOperator = errors.New("unknown update operator")

	// ErrTypeMismatch is returned when an operator meets a field of the wrong type
	ErrTypeMismatch = errors.New("type mismatch")
)
