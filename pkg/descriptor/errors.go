package descriptor

import "errors"

// ErrInvalidDescriptor is returned for malformed or incomplete descriptors.
// Construction errors wrap it together with the underlying cause.
var ErrInvalidDescriptor = errors.New("invalid descriptor")
