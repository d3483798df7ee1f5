package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSTileStore keeps cached tiles in a Google Cloud Storage bucket
type GCSTileStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSTileStore creates a GCS-backed tile store
func NewGCSTileStore(ctx context.Context, bucketName string) (*GCSTileStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSTileStore{
		client: client,
		bucket: bucketName,
		prefix: "tiles/",
	}, nil
}

// Close closes the GCS client
func (g *GCSTileStore) Close() error {
	return g.client.Close()
}

// Get retrieves cached tile bytes for a key
func (g *GCSTileStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj := g.client.Bucket(g.bucket).Object(g.prefix + key)

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open cached tile %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached tile %s: %w", key, err)
	}
	return data, nil
}

// Put stores tile bytes under a key
func (g *GCSTileStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	obj := g.client.Bucket(g.bucket).Object(g.prefix + key)

	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.Metadata = map[string]string{
		"cached-at": time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write cached tile %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize cached tile %s: %w", key, err)
	}
	return nil
}

// Exists checks whether a key is present
func (g *GCSTileStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.client.Bucket(g.bucket).Object(g.prefix + key).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat cached tile %s: %w", key, err)
	}
	return true, nil
}

// Cleanup removes cache objects older than maxAge
func (g *GCSTileStore) Cleanup(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	bucket := g.client.Bucket(g.bucket)

	it := bucket.Objects(ctx, &storage.Query{Prefix: g.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate cache objects: %w", err)
		}
		if attrs.Created.Before(cutoff) {
			if err := bucket.Object(attrs.Name).Delete(ctx); err != nil {
				return fmt.Errorf("failed to delete cache object %s: %w", attrs.Name, err)
			}
		}
	}
	return nil
}
