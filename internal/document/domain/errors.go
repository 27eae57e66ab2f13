package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUploadFailed       = errors.New("upload_failed")
	ErrValidationFailed   = errors.New("document_validation_failed")
	ErrStorageUnavailable = errors.New("document_storage_unavailable")
)

const (
	KindValidationFailed   = "validation_failed"
	KindStorageUnavailable = "storage_unavailable"
)

const (
	ReasonMissingFilename      = "missing_filename"
	ReasonUnsupportedMediaType = "unsupported_media_type"
	ReasonFileTooLarge         = "file_too_large"
	ReasonEmptyContent         = "empty_content"
	ReasonInvalidEncoding      = "invalid_content_encoding"
	ReasonSizeMismatch         = "size_mismatch"
)

// UploadError is the single failure reported for a batch. It names the
// offending document and matches ErrUploadFailed plus the kind sentinel.
type UploadError struct {
	Kind     string
	Index    int
	Document string
	Reason   string
	Cause    error
}

func ValidationFailed(index int, document, reason string) *UploadError {
	return &UploadError{Kind: KindValidationFailed, Index: index, Document: document, Reason: reason}
}

func StorageUnavailable(index int, document string, cause error) *UploadError {
	return &UploadError{Kind: KindStorageUnavailable, Index: index, Document: document, Reason: "storage_unavailable", Cause: cause}
}

func (e *UploadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upload failed: document %d (%s): %s: %v", e.Index, e.Document, e.Reason, e.Cause)
	}
	return fmt.Sprintf("upload failed: document %d (%s): %s", e.Index, e.Document, e.Reason)
}

func (e *UploadError) Unwrap() error { return e.Cause }

func (e *UploadError) Is(target error) bool {
	switch target {
	case ErrUploadFailed:
		return true
	case ErrValidationFailed:
		return e.Kind == KindValidationFailed
	case ErrStorageUnavailable:
		return e.Kind == KindStorageUnavailable
	}
	return false
}
