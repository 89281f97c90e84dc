package fingerprint

import "errors"

// ErrPredict wraps forward pass failures.
var ErrPredict = errors.New("fingerprint prediction failed")
