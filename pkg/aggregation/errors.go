package aggregation

import "errors"

var (
	// ErrInvalidStage is returned for malformed stage specifications
	ErrInvalidStage = errors.New("invalid pipeline stage")

	// ErrUnsupportedStage is returned for stage operators the pipeline does not know
	ErrUnsupportedStage = errors.New("unsupported stage")

	// ErrUnsupportedAccumulator is returned for unknown accumulator operators
	ErrUnsupportedAccumulator = errors.New("unsupported accumulator")

	// ErrNoBucket is returned when a $bucket value falls outside every
	// boundary and no default bucket was declared
	ErrNoBucket = errors.New("value does not fall into any bucket")
)
