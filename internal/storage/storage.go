// Package storage provides blob storage backends for listing image artifacts.
package storage

import "context"

// BlobStore is the artifact storage contract used by the image pipeline.
// Delete of a missing key is not an error; idempotent removal keeps listing
// deletion retryable.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
