package query

import "errors"

var (
	// ErrInvalidFilter is returned for malformed filter expressions
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrUnknownOperator is returned for operators the parser does not support
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrInvalidProjection is returned for malformed projections
	ErrInvalidProjection = errors.New("invalid projection")

	// ErrInvalidSort is returned for malformed sort specifications
	ErrInvalidSort = errors.New("invalid sort specification")
)
