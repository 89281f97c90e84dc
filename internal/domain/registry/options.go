package registry

import "github.com/okian/footprint/pkg/logger"

// Option configures a Registry.
type Option func(*Registry)

// WithSeed sets the weight initialization seed.
func WithSeed(seed int64) Option {
	return func(r *Registry) {
		r.seed = seed
	}
}

// WithSnapshotStore loads weights from, and persists fresh weights to, s.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(r *Registry) {
		r.snapshots = s
	}
}

// WithLogger sets the registry logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
