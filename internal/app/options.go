package service

import (
	"time"

	"github.com/okian/footprint/internal/adapters/mq/publisher"
	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/domain/geo"
	"github.com/okian/footprint/internal/domain/registry"
	"github.com/okian/footprint/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the visitor store. The in-memory store is used otherwise.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithGeoProviders sets the ordered geolocation provider chain.
func WithGeoProviders(providers ...geo.Provider) Option {
	return func(s *Service) {
		s.providers = providers
	}
}

// WithPublisher sets where scored visits are delivered.
func WithPublisher(p publisher.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithSnapshotStore persists model weights across restarts.
func WithSnapshotStore(store registry.SnapshotStore) Option {
	return func(s *Service) {
		s.snapshots = store
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
