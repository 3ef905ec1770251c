package storage

import (
	"context"
	"io"
)

type Object struct {
	Name string
	Size int64
}

// Provider abstracts where uploaded scan images and model checkpoints live.
// Local deployments use a plain directory, server deployments use S3 or any
// S3-compatible store.
type Provider interface {
	CreateBucket(ctx context.Context, bucket string) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	DeleteObjects(ctx context.Context, bucket, prefix string) error

	DownloadObject(ctx context.Context, bucket, key, filename string) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)
}
