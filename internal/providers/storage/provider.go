package storage

import (
	"context"
	"errors"
)

var (
	ErrUnavailable    = errors.New("storage_unavailable")
	ErrObjectExists   = errors.New("storage_object_exists")
	ErrObjectNotFound = errors.New("storage_object_not_found")
	ErrInvalidPath    = errors.New("storage_invalid_path")
)

// Object describes a blob written to the bucket.
type Object struct {
	Path        string
	URL         string
	ContentType string
	Size        int64
}

// Provider stores binary blobs and exposes them under a public locator.
// Put never overwrites: writing an existing path fails with ErrObjectExists.
type Provider interface {
	Put(ctx context.Context, path string, contentType string, body []byte) (Object, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	PublicURL(path string) string
}
