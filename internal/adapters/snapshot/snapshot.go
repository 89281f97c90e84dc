// Package snapshot persists model bundles as snappy-compressed blobs on
// the local filesystem or in S3.
package snapshot

import (
	"context"
	"fmt"

	"github.com/golang/snappy"
	"github.com/okian/footprint/internal/config"
	"github.com/okian/footprint/internal/domain/registry"
)

// Backend names.
const (
	BackendNone = "none"
	BackendFile = "file"
	BackendS3   = "s3"
)

func compress(data []byte) []byte { return snappy.Encode(nil, data) }

func decompress(data []byte) ([]byte, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return raw, nil
}

// Open returns the store selected by cfg, or nil when snapshots are disabled.
func Open(ctx context.Context, cfg *config.Config) (registry.SnapshotStore, error) {
	switch cfg.SnapshotBackend {
	case BackendNone, "":
		return nil, nil
	case BackendFile:
		return NewFileStore(cfg.SnapshotDir, cfg.SnapshotKey), nil
	case BackendS3:
		return NewS3Store(ctx, S3Config{
			Bucket:   cfg.SnapshotBucket,
			Key:      cfg.SnapshotKey,
			Region:   cfg.SnapshotRegion,
			Endpoint: cfg.SnapshotEndpoint,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.SnapshotBackend)
	}
}
