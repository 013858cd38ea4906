package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	// 1. Missing blob
	_, err := store.Open(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	// 2. Put and read back
	require.NoError(t, store.Put(ctx, "a", []byte("alpha")))

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, int64(5), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(buf[:n]))

	blob.Close()

	// 3. Streaming create
	w, err := store.Create(ctx, "b")
	require.NoError(t, err)
	_, err = w.Write([]byte("beta"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	got, err := ReadAll(ctx, store, "b")
	require.NoError(t, err)
	assert.Equal(t, "beta", string(got))

	// 4. List with prefix, sorted
	require.NoError(t, store.Put(ctx, "a2", []byte("x")))

	names, err := store.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a2"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a2", "b"}, names)

	// 5. Delete is idempotent
	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))

	_, err = store.Open(ctx, "a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReadRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "blob", []byte("0123456789")))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	// Clamped range
	r, err := blob.ReadRange(ctx, 7, 10)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "789", string(content))

	// Offset past EOF
	_, err = blob.ReadRange(ctx, 10, 1)
	require.ErrorIs(t, err, io.EOF)
}

func TestMemoryStore_CreateAbort(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	w, err := store.Create(ctx, "doomed")
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, w.(Aborter).Abort())
	require.NoError(t, w.Close())

	_, err = store.Open(ctx, "doomed")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_OpenIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "blob", []byte("aaaa")))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	// Replacing the stored blob does not affect the open handle.
	require.NoError(t, store.Put(ctx, "blob", []byte("bbbb")))

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(buf[:n]))
}
