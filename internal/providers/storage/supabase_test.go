package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSupabase(t *testing.T, handler http.HandlerFunc) *SupabaseProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewSupabase(SupabaseConfig{
		URL:            srv.URL,
		ServiceRoleKey: "service-key",
		Bucket:         "uploads",
	}, srv.Client(), zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestSupabasePutSendsNonUpsertRequest(t *testing.T) {
	var gotBody []byte
	p := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/uploads/application-documents/a.pdf", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "false", r.Header.Get("x-upsert"))
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"Key":"uploads/application-documents/a.pdf"}`))
	})

	obj, err := p.Put(context.Background(), "application-documents/a.pdf", "application/pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), gotBody)
	assert.Equal(t, "application-documents/a.pdf", obj.Path)
	assert.Contains(t, obj.URL, "/storage/v1/object/public/uploads/application-documents/a.pdf")
	assert.EqualValues(t, 4, obj.Size)
}

func TestSupabaseErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "conflict", status: http.StatusConflict, want: ErrObjectExists},
		{name: "duplicate in body", status: http.StatusBadRequest, body: `{"statusCode":"409","error":"Duplicate"}`, want: ErrObjectExists},
		{name: "server error", status: http.StatusBadGateway, want: ErrUnavailable},
		{name: "throttled", status: http.StatusTooManyRequests, want: ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := p.Put(context.Background(), "x/y.pdf", "application/pdf", []byte("x"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestSupabaseTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	p, err := NewSupabase(SupabaseConfig{URL: srv.URL, ServiceRoleKey: "k"}, srv.Client(), zap.NewNop())
	require.NoError(t, err)
	srv.Close()

	_, err = p.Put(context.Background(), "x/y.pdf", "application/pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSupabaseDeleteIgnoresMissingObject(t *testing.T) {
	p := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/uploads", r.URL.Path)
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"passport-scans/p.png"}, body["prefixes"])
		w.WriteHeader(http.StatusNotFound)
	})

	assert.NoError(t, p.Delete(context.Background(), "passport-scans/p.png"))
}

func TestSupabaseRejectsTraversal(t *testing.T) {
	p := newTestSupabase(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("storage must not be contacted")
	})
	_, err := p.Put(context.Background(), "../etc/passwd", "application/pdf", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
}
