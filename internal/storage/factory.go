package storage

import (
	"context"
	"fmt"

	"github.com/Zhihong0321/solar-analysis-app/internal/config"
)

// NewTileStore creates a tile store based on configuration: GCS when a
// bucket is configured, otherwise a local directory.
func NewTileStore(ctx context.Context, cfg *config.Config) (TileStore, error) {
	if cfg.GCSBucket != "" {
		store, err := NewGCSTileStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS tile store: %w", err)
		}
		return store, nil
	}

	cacheDir := cfg.TileCacheDir
	if cacheDir == "" {
		cacheDir = "tile-cache"
	}
	store, err := NewLocalTileStore(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local tile store: %w", err)
	}
	return store, nil
}
