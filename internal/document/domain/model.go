package domain

import (
	"context"
	"time"
)

// Payload is a document as submitted by the client, content still base64 encoded.
type Payload struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mimetype"`
	Size      int64  `json:"size"`
	Data      string `json:"data"`
}

// StoredDocument references a blob that has been written to object storage.
type StoredDocument struct {
	OriginalName string    `json:"original_name"`
	URL          string    `json:"url"`
	StoragePath  string    `json:"storage_path"`
	Category     string    `json:"category"`
	MediaType    string    `json:"media_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

type UploadRequest struct {
	Category  string
	Documents []Payload
}

// PreparedBatch is an UploadRequest whose payloads all passed validation,
// content already decoded.
type PreparedBatch struct {
	Category  string
	Documents []PreparedDocument
}

type PreparedDocument struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Service turns payload batches into stored documents. Upload returns either
// one StoredDocument per payload, in input order, or a single *UploadError.
//
// Prepare validates every batch it is given before returning, so callers with
// several batches can reject the whole set before any of them reaches storage.
// Store writes one prepared batch with the same all-or-nothing result as Upload.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) ([]StoredDocument, error)
	Prepare(ctx context.Context, reqs ...UploadRequest) ([]PreparedBatch, error)
	Store(ctx context.Context, batch PreparedBatch) ([]StoredDocument, error)
	Discard(ctx context.Context, docs []StoredDocument)
}
