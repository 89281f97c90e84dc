// Package registry owns the process-wide fingerprint and anomaly networks.
//
// The registry is created by the application root and handed to consumers.
// Initialization runs at most once at a time: callers that arrive while it
// is in flight wait for and share the same result.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/footprint/internal/domain/nn"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Network names inside a bundle.
const (
	FingerprintNetwork = "fingerprint"
	AutoencoderNetwork = "autoencoder"

	bundleVersion = 1
	initKey       = "init"
)

// Weight sources reported to metrics.
const (
	sourceSeed     = "seed"
	sourceSnapshot = "snapshot"
)

// SnapshotStore persists serialized model bundles.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Bundle is the persisted form of both networks.
type Bundle struct {
	Version    int           `json:"version"`
	VectorSize int           `json:"vectorSize"`
	Seed       int64         `json:"seed"`
	CreatedAt  time.Time     `json:"createdAt"`
	Networks   []nn.Snapshot `json:"networks"`
}

type models struct {
	fingerprint *nn.Sequential
	autoencoder *nn.Sequential
}

// Registry holds the initialized networks.
type Registry struct {
	vectorSize int
	seed       int64
	snapshots  SnapshotStore
	logger     logger.Logger

	group singleflight.Group

	mu         sync.RWMutex
	current    *models
	generation uint64
}

// New creates an uninitialized registry for vectors of vectorSize components.
func New(vectorSize int, opts ...Option) *Registry {
	r := &Registry{vectorSize: vectorSize, seed: 1}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("registry")
	}
	return r
}

// FingerprintSpecs is the identifier network: one hidden layer and an
// output as wide as the input.
func FingerprintSpecs(vectorSize int) []nn.LayerSpec {
	return []nn.LayerSpec{
		{Units: 32, Activation: nn.ReLU},
		{Units: vectorSize, Activation: nn.Sigmoid},
	}
}

// AutoencoderSpecs is the symmetric 32-16-32 autoencoder.
func AutoencoderSpecs(vectorSize int) []nn.LayerSpec {
	return []nn.LayerSpec{
		{Units: 32, Activation: nn.ReLU},
		{Units: 16, Activation: nn.ReLU},
		{Units: 32, Activation: nn.ReLU},
		{Units: vectorSize, Activation: nn.Sigmoid},
	}
}

// Init loads or builds both networks unless they are already present.
func (r *Registry) Init(ctx context.Context) error {
	if r.ready() {
		return nil
	}
	_, err, _ := r.group.Do(initKey, func() (interface{}, error) {
		if r.ready() {
			return nil, nil
		}
		return nil, r.initialize(ctx)
	})
	return err
}

// Reinit discards the current networks and initializes again.
func (r *Registry) Reinit(ctx context.Context) error {
	_, err, _ := r.group.Do(initKey, func() (interface{}, error) {
		r.dispose()
		return nil, r.initialize(ctx)
	})
	return err
}

// Close releases the networks. A later call to Init rebuilds them.
func (r *Registry) Close() {
	r.dispose()
}

// Fingerprint returns the identifier network, initializing on first use.
func (r *Registry) Fingerprint(ctx context.Context) (*nn.Sequential, error) {
	m, err := r.models(ctx)
	if err != nil {
		return nil, err
	}
	return m.fingerprint, nil
}

// Autoencoder returns the anomaly network, initializing on first use.
func (r *Registry) Autoencoder(ctx context.Context) (*nn.Sequential, error) {
	m, err := r.models(ctx)
	if err != nil {
		return nil, err
	}
	return m.autoencoder, nil
}

// VectorSize returns the input width both networks were built for.
func (r *Registry) VectorSize() int { return r.vectorSize }

// Generation counts successful initializations.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Save persists the current networks to the snapshot store, if configured.
func (r *Registry) Save(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}
	m, err := r.models(ctx)
	if err != nil {
		return err
	}
	data, err := r.encode(m)
	if err != nil {
		return err
	}
	if err := r.snapshots.Save(ctx, data); err != nil {
		return fmt.Errorf("save model snapshot: %w", err)
	}
	return nil
}

func (r *Registry) models(ctx context.Context) (*models, error) {
	if err := r.Init(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return nil, ErrNotInitialized
	}
	return r.current, nil
}

func (r *Registry) ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current != nil
}

func (r *Registry) dispose() {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
}

func (r *Registry) initialize(ctx context.Context) error {
	m, source, err := r.loadOrBuild(ctx)
	if err != nil {
		return err
	}
	if err := r.validate(m); err != nil {
		return err
	}

	r.mu.Lock()
	r.current = m
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	metrics.RecordModelInit(source)
	r.logger.Info(ctx, "models initialized",
		logger.String("weights_source", source),
		logger.Int("vector_size", r.vectorSize),
		logger.Int64("seed", r.seed),
		logger.Any("generation", gen))
	return nil
}

func (r *Registry) loadOrBuild(ctx context.Context) (*models, string, error) {
	if r.snapshots != nil {
		data, err := r.snapshots.Load(ctx)
		switch {
		case err == nil:
			m, err := r.decode(data)
			if err != nil {
				return nil, "", err
			}
			return m, sourceSnapshot, nil
		case errors.Is(err, ErrSnapshotNotFound):
			r.logger.Info(ctx, "no model snapshot found, building from seed")
		default:
			return nil, "", fmt.Errorf("load model snapshot: %w", err)
		}
	}

	m, err := r.build()
	if err != nil {
		return nil, "", err
	}

	if r.snapshots != nil {
		data, err := r.encode(m)
		if err != nil {
			return nil, "", err
		}
		if err := r.snapshots.Save(ctx, data); err != nil {
			r.logger.Warn(ctx, "persisting model snapshot failed", logger.Error(err))
		}
	}
	return m, sourceSeed, nil
}

func (r *Registry) build() (*models, error) {
	fp, err := nn.Build(FingerprintNetwork, r.vectorSize, FingerprintSpecs(r.vectorSize), r.seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	ae, err := nn.Build(AutoencoderNetwork, r.vectorSize, AutoencoderSpecs(r.vectorSize), r.seed+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	return &models{fingerprint: fp, autoencoder: ae}, nil
}

func (r *Registry) validate(m *models) error {
	for _, net := range []*nn.Sequential{m.fingerprint, m.autoencoder} {
		if net.InputWidth() != r.vectorSize || net.OutputWidth() != r.vectorSize {
			return fmt.Errorf("%w: %s is %d->%d, extractor emits %d",
				ErrVectorSizeMismatch, net.Name(), net.InputWidth(), net.OutputWidth(), r.vectorSize)
		}
	}
	return nil
}

func (r *Registry) encode(m *models) ([]byte, error) {
	b := Bundle{
		Version:    bundleVersion,
		VectorSize: r.vectorSize,
		Seed:       r.seed,
		CreatedAt:  time.Now().UTC(),
		Networks:   []nn.Snapshot{m.fingerprint.Snapshot(), m.autoencoder.Snapshot()},
	}
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode model bundle: %w", err)
	}
	return data, nil
}

func (r *Registry) decode(data []byte) (*models, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", nn.ErrCorruptSnapshot, err)
	}
	if b.Version != bundleVersion {
		return nil, fmt.Errorf("%w: bundle version %d", nn.ErrCorruptSnapshot, b.Version)
	}
	if b.VectorSize != r.vectorSize {
		return nil, fmt.Errorf("%w: snapshot built for %d, configured %d",
			ErrVectorSizeMismatch, b.VectorSize, r.vectorSize)
	}

	m := &models{}
	for _, snap := range b.Networks {
		net, err := nn.FromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		switch snap.Name {
		case FingerprintNetwork:
			m.fingerprint = net
		case AutoencoderNetwork:
			m.autoencoder = net
		}
	}
	if m.fingerprint == nil || m.autoencoder == nil {
		return nil, fmt.Errorf("%w: bundle is missing a network", nn.ErrCorruptSnapshot)
	}
	return m, nil
}
