package repository

import "errors"

// Sentinel errors for visitor stores.
var (
	ErrNotFound       = errors.New("visitor not found")
	ErrInvalidID      = errors.New("invalid visitor id")
	ErrInvalidLimit   = errors.New("invalid list limit")
	ErrConflict       = errors.New("concurrent update retries exhausted")
	ErrCorruptRecord  = errors.New("corrupt visitor record")
	ErrUnknownBackend = errors.New("unknown store backend")
)
