package snapshot

import "errors"

var (
	// ErrCorrupt is returned when a stored blob cannot be decompressed.
	ErrCorrupt = errors.New("corrupt snapshot")
	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown snapshot backend")
)
