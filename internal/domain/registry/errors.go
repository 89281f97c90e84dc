package registry

import "errors"

var (
	// ErrVectorSizeMismatch is fatal: the networks cannot accept extractor output.
	ErrVectorSizeMismatch = errors.New("feature vector size does not match model input")
	// ErrInitFailed wraps failures building fresh networks.
	ErrInitFailed = errors.New("model initialization failed")
	// ErrNotInitialized is returned when models were released mid-call.
	ErrNotInitialized = errors.New("models not initialized")
	// ErrSnapshotNotFound is returned by snapshot stores holding no bundle yet.
	ErrSnapshotNotFound = errors.New("model snapshot not found")
)
