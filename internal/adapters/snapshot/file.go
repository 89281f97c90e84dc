package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/footprint/internal/domain/registry"
)

// FileStore keeps one bundle at dir/key.snappy.
type FileStore struct {
	path string
}

// NewFileStore creates a store rooted at dir. Slashes in key become
// subdirectories.
func NewFileStore(dir, key string) *FileStore {
	key = strings.Trim(key, "/")
	if key == "" {
		key = "models"
	}
	return &FileStore{path: filepath.Join(dir, filepath.FromSlash(key)+".snappy")}
}

// Path returns the bundle location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, registry.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	return decompress(data)
}

// Save writes through a temporary file and renames it into place.
func (s *FileStore) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compress(data)); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}
