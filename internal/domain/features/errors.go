package features

import "errors"

// ErrInvalidSize is returned when the requested width cannot hold the fixed blocks.
var ErrInvalidSize = errors.New("invalid feature vector size")
