package service

import "errors"

var (
	// ErrNotStarted is returned when visits arrive before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrStopped is returned when Start is called after Stop.
	ErrStopped = errors.New("service stopped")
	// ErrVisitorNotFound is returned for unknown visitor ids.
	ErrVisitorNotFound = errors.New("visitor not found")
	// ErrStoreWrite wraps failures persisting a visit.
	ErrStoreWrite = errors.New("visitor store write failed")
	// ErrFingerprint wraps failures deriving a visitor id.
	ErrFingerprint = errors.New("fingerprint failed")
)
