// Package objectstore keeps binary objects (profile images) in an
// S3-compatible bucket.
package objectstore

import "context"

// Store is the object storage contract used by the media service.
// Get returns common.ErrNotFound for missing keys.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
