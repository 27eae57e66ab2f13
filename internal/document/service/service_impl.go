package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	"github.com/smallbiznis/translog/internal/document/domain"
	obsmetrics "github.com/smallbiznis/translog/internal/observability/metrics"
	"github.com/smallbiznis/translog/internal/providers/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Storage    storage.Provider
	Policy     config.DocumentPolicyProvider
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	storage    storage.Provider
	policy     config.DocumentPolicyProvider
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics

	entropyMu sync.Mutex
	entropy   io.Reader
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:        p.Log.Named("document.service"),
		storage:    p.Storage,
		policy:     p.Policy,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
}

func (s *Service) Upload(ctx context.Context, req domain.UploadRequest) ([]domain.StoredDocument, error) {
	batches, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Store(ctx, batches[0])
}

// Prepare validates and decodes every payload of every request. Nothing is
// written to storage; the first violation fails the whole set.
func (s *Service) Prepare(ctx context.Context, reqs ...domain.UploadRequest) ([]domain.PreparedBatch, error) {
	policy := s.policy.Get()

	out := make([]domain.PreparedBatch, len(reqs))
	for b, req := range reqs {
		docs := make([]domain.PreparedDocument, len(req.Documents))
		for i, doc := range req.Documents {
			data, err := validate(policy, i, doc)
			if err != nil {
				s.log.Warn("document rejected",
					zap.String("category", req.Category),
					zap.Int("index", i),
					zap.String("document", doc.Filename),
					zap.String("reason", err.Reason),
				)
				s.obsMetrics.RecordDocumentUpload(ctx, req.Category, "rejected")
				return nil, err
			}
			docs[i] = domain.PreparedDocument{
				Filename:  doc.Filename,
				MediaType: normalizeMediaType(doc.MediaType),
				Data:      data,
			}
		}
		out[b] = domain.PreparedBatch{Category: req.Category, Documents: docs}
	}
	return out, nil
}

// Store uploads a prepared batch concurrently. On the first failure the
// remaining uploads are cancelled and whatever was written is discarded.
func (s *Service) Store(ctx context.Context, batch domain.PreparedBatch) ([]domain.StoredDocument, error) {
	if len(batch.Documents) == 0 {
		return []domain.StoredDocument{}, nil
	}

	folder := s.policy.Get().Folder(batch.Category)
	stored := make([]*domain.StoredDocument, len(batch.Documents))
	g, gctx := errgroup.WithContext(ctx)
	for i := range batch.Documents {
		i := i
		g.Go(func() error {
			item := batch.Documents[i]
			objectPath := s.locator(folder, item.Filename, item.MediaType)

			obj, err := s.storage.Put(gctx, objectPath, item.MediaType, item.Data)
			if err != nil {
				s.obsMetrics.RecordDocumentUpload(ctx, batch.Category, "failed")
				return domain.StorageUnavailable(i, item.Filename, err)
			}
			s.obsMetrics.RecordDocumentUpload(ctx, batch.Category, "stored")

			stored[i] = &domain.StoredDocument{
				OriginalName: item.Filename,
				URL:          obj.URL,
				StoragePath:  obj.Path,
				Category:     batch.Category,
				MediaType:    item.MediaType,
				SizeBytes:    obj.Size,
				UploadedAt:   s.clock.Now(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var uploadErr *domain.UploadError
		if errors.As(err, &uploadErr) {
			s.log.Error("document upload failed",
				zap.Int("index", uploadErr.Index),
				zap.String("document", uploadErr.Document),
				zap.Error(uploadErr.Cause),
			)
		}

		partial := make([]domain.StoredDocument, 0, len(stored))
		for _, doc := range stored {
			if doc != nil {
				partial = append(partial, *doc)
			}
		}
		s.Discard(context.WithoutCancel(ctx), partial)
		return nil, err
	}

	out := make([]domain.StoredDocument, len(stored))
	for i, doc := range stored {
		out[i] = *doc
	}
	return out, nil
}

// Discard deletes blobs best effort. Failures are logged and otherwise ignored.
func (s *Service) Discard(ctx context.Context, docs []domain.StoredDocument) {
	for _, doc := range docs {
		if strings.TrimSpace(doc.StoragePath) == "" {
			continue
		}
		if err := s.storage.Delete(ctx, doc.StoragePath); err != nil {
			s.log.Warn("failed to discard stored document",
				zap.String("path", doc.StoragePath),
				zap.String("document", doc.OriginalName),
				zap.Error(err),
			)
			continue
		}
		s.log.Debug("discarded stored document", zap.String("path", doc.StoragePath))
	}
}

func validate(policy config.DocumentPolicy, index int, doc domain.Payload) ([]byte, *domain.UploadError) {
	name := strings.TrimSpace(doc.Filename)
	if name == "" {
		return nil, domain.ValidationFailed(index, doc.Filename, domain.ReasonMissingFilename)
	}
	if !policy.Allows(normalizeMediaType(doc.MediaType)) {
		return nil, domain.ValidationFailed(index, name, domain.ReasonUnsupportedMediaType)
	}
	if doc.Size > policy.MaxSizeBytes {
		return nil, domain.ValidationFailed(index, name, domain.ReasonFileTooLarge)
	}

	encoded := stripDataURL(doc.Data)
	if encoded == "" {
		return nil, domain.ValidationFailed(index, name, domain.ReasonEmptyContent)
	}
	// Reject before decoding anything larger than the ceiling could produce.
	if int64(base64.StdEncoding.DecodedLen(len(encoded))) > policy.MaxSizeBytes+3 {
		return nil, domain.ValidationFailed(index, name, domain.ReasonFileTooLarge)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, domain.ValidationFailed(index, name, domain.ReasonInvalidEncoding)
		}
	}
	if len(data) == 0 {
		return nil, domain.ValidationFailed(index, name, domain.ReasonEmptyContent)
	}
	if int64(len(data)) > policy.MaxSizeBytes {
		return nil, domain.ValidationFailed(index, name, domain.ReasonFileTooLarge)
	}
	if doc.Size > 0 && int64(len(data)) != doc.Size {
		return nil, domain.ValidationFailed(index, name, domain.ReasonSizeMismatch)
	}
	return data, nil
}

// locator builds <folder>/<ulid>-<slug><ext>. The ULID is monotonic within
// the process so concurrent uploads of the same file never share a path.
func (s *Service) locator(folder, filename, mediaType string) string {
	s.entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(s.clock.Now()), s.entropy)
	s.entropyMu.Unlock()

	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(filename, "\\", "/")), path.Ext(filename))
	name := slug.Make(base)
	if name == "" {
		name = "document"
	}
	return path.Join(folder, id.String()+"-"+name+extension(mediaType, filename))
}

func extension(mediaType, filename string) string {
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	return strings.ToLower(path.Ext(filename))
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	return mediaType
}

func stripDataURL(data string) string {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		if idx := strings.Index(data, ","); idx >= 0 {
			return data[idx+1:]
		}
	}
	return data
}
