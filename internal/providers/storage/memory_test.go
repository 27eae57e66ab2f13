package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderNeverOverwrites(t *testing.T) {
	p := NewMemory("https://files.test")
	ctx := context.Background()

	obj, err := p.Put(ctx, "/docs/a.pdf", "application/pdf", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/docs/a.pdf", obj.URL)

	_, err = p.Put(ctx, "docs/a.pdf", "application/pdf", []byte("two"))
	assert.ErrorIs(t, err, ErrObjectExists)

	data, err := p.Get(ctx, "docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)

	require.NoError(t, p.Delete(ctx, "docs/a.pdf"))
	require.NoError(t, p.Delete(ctx, "docs/a.pdf"))
	_, err = p.Get(ctx, "docs/a.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
