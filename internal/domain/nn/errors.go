package nn

import "errors"

var (
	ErrShapeMismatch     = errors.New("shape mismatch")
	ErrUnknownActivation = errors.New("unknown activation")
	ErrInvalidInput      = errors.New("invalid input")
	ErrCorruptSnapshot   = errors.New("corrupt snapshot")
)
