package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	"github.com/smallbiznis/translog/internal/document/domain"
	"github.com/smallbiznis/translog/internal/document/service"
	"github.com/smallbiznis/translog/internal/providers/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, store storage.Provider) domain.Service {
	t.Helper()
	return service.NewService(service.Params{
		Log:     zap.NewNop(),
		Storage: store,
		Policy:  config.StaticDocumentPolicy(config.DefaultDocumentPolicy()),
		Clock:   clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
}

func payload(name, mediaType string, content []byte) domain.Payload {
	return domain.Payload{
		Filename:  name,
		MediaType: mediaType,
		Size:      int64(len(content)),
		Data:      base64.StdEncoding.EncodeToString(content),
	}
}

func TestUploadReturnsOneDocumentPerPayloadWithDistinctLocators(t *testing.T) {
	store := storage.NewMemory("https://files.test")
	svc := newService(t, store)

	docs := []domain.Payload{
		payload("crew list.pdf", "application/pdf", []byte("%PDF-1")),
		payload("crew list.pdf", "application/pdf", []byte("%PDF-2")),
		payload("Registration.PNG", "image/png", []byte{0x89, 'P', 'N', 'G'}),
		payload("insurance.jpeg", "image/jpeg", []byte{0xff, 0xd8, 0xff}),
	}

	stored, err := svc.Upload(context.Background(), domain.UploadRequest{
		Category:  config.DocumentCategoryTrip,
		Documents: docs,
	})
	require.NoError(t, err)
	require.Len(t, stored, len(docs))

	seen := map[string]bool{}
	for i, doc := range stored {
		assert.Equal(t, docs[i].Filename, doc.OriginalName)
		assert.True(t, strings.HasPrefix(doc.StoragePath, "application-documents/"), doc.StoragePath)
		assert.False(t, seen[doc.StoragePath], "duplicate locator %s", doc.StoragePath)
		seen[doc.StoragePath] = true
		assert.Equal(t, "https://files.test/"+doc.StoragePath, doc.URL)
	}
	assert.True(t, strings.HasSuffix(stored[0].StoragePath, "-crew-list.pdf"))
	assert.True(t, strings.HasSuffix(stored[2].StoragePath, "-registration.png"))
	assert.True(t, strings.HasSuffix(stored[3].StoragePath, "-insurance.jpg"))
	assert.Len(t, store.Paths(), len(docs))
}

func TestUploadValidationFailsBeforeContactingStorage(t *testing.T) {
	var puts atomic.Int32
	store := storage.NewMemory("")
	store.FailPut = func(string) error {
		puts.Add(1)
		return nil
	}
	svc := newService(t, store)

	tooLarge := make([]byte, 10*1024*1024+1)

	cases := []struct {
		name   string
		doc    domain.Payload
		reason string
	}{
		{name: "media type", doc: payload("a.gif", "image/gif", []byte("GIF89a")), reason: domain.ReasonUnsupportedMediaType},
		{name: "declared size", doc: domain.Payload{Filename: "b.pdf", MediaType: "application/pdf", Size: 11 << 20, Data: "JVBERg=="}, reason: domain.ReasonFileTooLarge},
		{name: "actual size", doc: payload("c.pdf", "application/pdf", tooLarge), reason: domain.ReasonFileTooLarge},
		{name: "encoding", doc: domain.Payload{Filename: "d.pdf", MediaType: "application/pdf", Size: 3, Data: "not base64!"}, reason: domain.ReasonInvalidEncoding},
		{name: "size mismatch", doc: domain.Payload{Filename: "e.pdf", MediaType: "application/pdf", Size: 99, Data: "JVBERg=="}, reason: domain.ReasonSizeMismatch},
		{name: "filename", doc: payload(" ", "application/pdf", []byte("x")), reason: domain.ReasonMissingFilename},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), domain.UploadRequest{
				Category: config.DocumentCategoryTrip,
				Documents: []domain.Payload{
					payload("ok.pdf", "application/pdf", []byte("%PDF")),
					tc.doc,
				},
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUploadFailed)
			assert.ErrorIs(t, err, domain.ErrValidationFailed)

			var uploadErr *domain.UploadError
			require.True(t, errors.As(err, &uploadErr))
			assert.Equal(t, 1, uploadErr.Index)
			assert.Equal(t, tc.reason, uploadErr.Reason)
		})
	}

	assert.Zero(t, puts.Load())
	assert.Empty(t, store.Paths())
}

func TestPrepareValidatesEveryBatchBeforeStoring(t *testing.T) {
	var puts atomic.Int32
	store := storage.NewMemory("https://files.test")
	store.FailPut = func(string) error {
		puts.Add(1)
		return nil
	}
	svc := newService(t, store)

	_, err := svc.Prepare(context.Background(),
		domain.UploadRequest{
			Category:  config.DocumentCategoryTrip,
			Documents: []domain.Payload{payload("crew.pdf", "application/pdf", []byte("%PDF-1"))},
		},
		domain.UploadRequest{
			Category: config.DocumentCategoryPassportScan,
			Documents: []domain.Payload{
				payload("passport.pdf", "application/pdf", []byte("%PDF-2")),
				payload("passport.txt", "text/plain", []byte("scan")),
			},
		},
	)
	require.Error(t, err)

	var uploadErr *domain.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, 1, uploadErr.Index)
	assert.Equal(t, domain.ReasonUnsupportedMediaType, uploadErr.Reason)
	assert.Zero(t, puts.Load())
}

func TestStoreWritesPreparedBatch(t *testing.T) {
	store := storage.NewMemory("https://files.test")
	svc := newService(t, store)

	batches, err := svc.Prepare(context.Background(),
		domain.UploadRequest{
			Category:  config.DocumentCategoryTrip,
			Documents: []domain.Payload{payload("crew.pdf", "application/pdf", []byte("%PDF-1"))},
		},
		domain.UploadRequest{Category: config.DocumentCategoryPassportScan},
	)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Empty(t, store.Paths())

	stored, err := svc.Store(context.Background(), batches[0])
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "crew.pdf", stored[0].OriginalName)
	assert.Equal(t, "application/pdf", stored[0].MediaType)

	empty, err := svc.Store(context.Background(), batches[1])
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Len(t, store.Paths(), 1)
}

func TestUploadStorageFailureDiscardsPartialBatch(t *testing.T) {
	store := storage.NewMemory("")
	store.FailPut = func(path string) error {
		if strings.HasSuffix(path, "-broken.pdf") {
			return storage.ErrUnavailable
		}
		return nil
	}
	svc := newService(t, store)

	stored, err := svc.Upload(context.Background(), domain.UploadRequest{
		Category: config.DocumentCategoryPassportScan,
		Documents: []domain.Payload{
			payload("first.pdf", "application/pdf", []byte("1")),
			payload("broken.pdf", "application/pdf", []byte("2")),
			payload("third.pdf", "application/pdf", []byte("3")),
		},
	})
	require.Error(t, err)
	assert.Nil(t, stored)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	var uploadErr *domain.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "broken.pdf", uploadErr.Document)
	assert.Empty(t, store.Paths())
}

func TestUploadAcceptsDataURL(t *testing.T) {
	store := storage.NewMemory("")
	svc := newService(t, store)

	content := []byte("%PDF-1.7")
	doc := payload("scan.pdf", "application/pdf; charset=binary", content)
	doc.Data = "data:application/pdf;base64," + doc.Data

	stored, err := svc.Upload(context.Background(), domain.UploadRequest{
		Category:  config.DocumentCategoryPassportScan,
		Documents: []domain.Payload{doc},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "application/pdf", stored[0].MediaType)
	assert.True(t, strings.HasPrefix(stored[0].StoragePath, "passport-scans/"))

	data, err := store.Get(context.Background(), stored[0].StoragePath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, data))
}
