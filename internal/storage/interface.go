package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// TileStore is a byte cache for raw raster tiles fetched from the upstream
// store. Implementations must tolerate concurrent use; a failed Put must
// never fail the request that triggered it.
type TileStore interface {
	// Close closes the store
	Close() error

	// Get retrieves cached tile bytes for a key
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores tile bytes under a key
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Exists checks whether a key is present
	Exists(ctx context.Context, key string) (bool, error)

	// Cleanup removes entries older than maxAge
	Cleanup(ctx context.Context, maxAge time.Duration) error
}

// KeyForURL derives a stable cache key from a tile URL. The key deliberately
// excludes nothing: two URLs differing only in auth parameters cache
// separately, which keeps signed and unsigned fetches apart.
func KeyForURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:]) + ".tile"
}
