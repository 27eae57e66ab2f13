package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentPolicyDefaults(t *testing.T) {
	holder, err := NewDocumentPolicyHolder(Config{Documents: DocumentsConfig{}})
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, int64(10*1024*1024), policy.MaxSizeBytes)
	assert.True(t, policy.Allows("application/pdf"))
	assert.True(t, policy.Allows("IMAGE/PNG"))
	assert.False(t, policy.Allows("application/zip"))
	assert.Equal(t, "application-documents", policy.Folder(DocumentCategoryTrip))
	assert.Equal(t, "passport-scans", policy.Folder(DocumentCategoryPassportScan))
	assert.Equal(t, "misc", policy.Folder("/misc/"))
}

func TestDocumentPolicyFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.yml")
	content := []byte(`documents:
  allowedMediaTypes:
    - application/pdf
  maxSizeBytes: 1024
  folders:
    trip: trip-docs
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewDocumentPolicyHolder(Config{Documents: DocumentsConfig{PolicyPath: path}})
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, int64(1024), policy.MaxSizeBytes)
	assert.True(t, policy.Allows("application/pdf"))
	assert.False(t, policy.Allows("image/png"))
	assert.Equal(t, "trip-docs", policy.Folder(DocumentCategoryTrip))
}

func TestDocumentPolicyRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.yml")
	require.NoError(t, os.WriteFile(path, []byte("documents:\n  maxSizeBytes: -1\n"), 0o600))

	_, err := NewDocumentPolicyHolder(Config{Documents: DocumentsConfig{PolicyPath: path}})
	assert.Error(t, err)
}
