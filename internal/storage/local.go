package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalTileStore keeps cached tiles on the local filesystem
type LocalTileStore struct {
	baseDir string
}

// NewLocalTileStore creates a local tile store rooted at baseDir
func NewLocalTileStore(baseDir string) (*LocalTileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", baseDir, err)
	}
	return &LocalTileStore{baseDir: baseDir}, nil
}

// Close is a no-op for local storage (implements the same interface as the
// GCS store)
func (l *LocalTileStore) Close() error {
	return nil
}

// Get retrieves cached tile bytes for a key
func (l *LocalTileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.baseDir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tile %s: %w", key, err)
	}
	return data, nil
}

// Put stores tile bytes under a key. Content type is ignored locally; the
// bytes carry their own format header.
func (l *LocalTileStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	path := filepath.Join(l.baseDir, key)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cached tile %s: %w", key, err)
	}
	return nil
}

// Exists checks whether a key is present
func (l *LocalTileStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(l.baseDir, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat cached tile %s: %w", key, err)
	}
	return true, nil
}

// Cleanup removes cache entries older than maxAge
func (l *LocalTileStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(l.baseDir)
	if err != nil {
		return fmt.Errorf("failed to list cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // entry vanished, keep going
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(l.baseDir, entry.Name()))
		}
	}
	return nil
}
