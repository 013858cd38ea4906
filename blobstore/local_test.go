package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/idgo/internal/fs"
)

func TestLocalBlobStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)

	ctx := context.Background()

	// 1. Create a blob
	blobName := "data-001.bin"
	data := []byte("hello world, this is a test blob for the archive")

	w, err := store.Create(ctx, blobName)
	require.NoError(t, err)

	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	err = w.Close()
	require.NoError(t, err)

	// Verify file exists on disk
	expectedPath := filepath.Join(tmpDir, blobName)
	_, err = os.Stat(expectedPath)
	require.NoError(t, err)

	// 2. Open and ReadAt
	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6) // "world"
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	// 3. ReadRange
	// Read "this" (offset 13, length 4)
	rangeReader, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	defer rangeReader.Close()

	rangeContent, err := io.ReadAll(rangeReader)
	require.NoError(t, err)
	require.Equal(t, "this", string(rangeContent))

	// 4. List (lexicographic order)
	blobName2 := "data-002.bin"
	w2, err := store.Create(ctx, blobName2)
	require.NoError(t, err)
	w2.Close()

	blobs, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{blobName, blobName2}, blobs)

	blobs, err = store.List(ctx, "data-002")
	require.NoError(t, err)
	require.Equal(t, []string{blobName2}, blobs)

	// 5. Delete
	err = store.Delete(ctx, blobName)
	require.NoError(t, err)

	// Deleting again is not an error
	err = store.Delete(ctx, blobName)
	require.NoError(t, err)

	blobsAfter, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{blobName2}, blobsAfter)

	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalBlobStore_ReadRange_Boundaries(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	blobName := "boundary.bin"
	data := []byte("0123456789")
	w, _ := store.Create(ctx, blobName)
	w.Write(data)
	w.Close()

	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	// Case 1: Read full range
	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	r.Close()
	require.True(t, bytes.Equal(data, content))

	// Case 2: Read past end
	r, err = blob.ReadRange(ctx, 8, 5) // Request 5 bytes starting at 8 (only 2 available: 8, 9)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))
	r.Close()

	// Case 3: Offset past EOF
	r, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)
	if r != nil {
		r.Close()
	}
}

func TestLocalBlobStore_PutAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	// 1. Put creates the blob in one step
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("v1")))

	got, err := ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))

	// 2. Put replaces existing content
	require.NoError(t, store.Put(ctx, "CURRENT", []byte("v2")))

	got, err = ReadAll(ctx, store, "CURRENT")
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	// 3. No temporary files survive
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestLocalBlobStore_PutFaults(t *testing.T) {
	ctx := context.Background()

	t.Run("write fault", func(t *testing.T) {
		tmpDir := t.TempDir()
		ffs := fs.NewFaultyFS(fs.LocalFS{})
		store := NewLocalStoreWithFS(tmpDir, ffs)

		require.NoError(t, store.Put(ctx, "blob", []byte("before")))

		ffs.AddRule("blob", fs.Fault{FailAfterBytes: 2})

		err := store.Put(ctx, "blob", []byte("after"))
		require.Error(t, err)

		// Old content is still intact
		ffs.AddRule("blob", fs.Fault{FailAfterBytes: -1})

		got, err := ReadAll(ctx, store, "blob")
		require.NoError(t, err)
		assert.Equal(t, "before", string(got))
	})

	t.Run("sync fault", func(t *testing.T) {
		tmpDir := t.TempDir()
		ffs := fs.NewFaultyFS(fs.LocalFS{})
		store := NewLocalStoreWithFS(tmpDir, ffs)

		require.NoError(t, store.Put(ctx, "blob", []byte("before")))

		ffs.AddRule("blob", fs.Fault{FailAfterBytes: -1, FailOnSync: true})

		err := store.Put(ctx, "blob", []byte("after"))
		require.Error(t, err)

		ffs.AddRule("blob", fs.Fault{FailAfterBytes: -1})

		got, err := ReadAll(ctx, store, "blob")
		require.NoError(t, err)
		assert.Equal(t, "before", string(got))
	})

	t.Run("rename fault", func(t *testing.T) {
		tmpDir := t.TempDir()
		ffs := fs.NewFaultyFS(fs.LocalFS{})
		store := NewLocalStoreWithFS(tmpDir, ffs)

		require.NoError(t, store.Put(ctx, "blob", []byte("before")))

		ffs.AddRule("blob", fs.Fault{FailAfterBytes: -1, FailOnRename: true})

		err := store.Put(ctx, "blob", []byte("after"))
		require.Error(t, err)

		ffs.AddRule("blob", fs.Fault{FailAfterBytes: -1})

		got, err := ReadAll(ctx, store, "blob")
		require.NoError(t, err)
		assert.Equal(t, "before", string(got))
	})
}

func TestLocalBlobStore_Abort(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := context.Background()

	w, err := store.Create(ctx, "doomed")
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, w.(Aborter).Abort())

	// Neither the blob nor its temporary file exist
	_, err = store.Open(ctx, "doomed")
	require.ErrorIs(t, err, ErrNotFound)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestLocalBlobStore_InjectedFSReadPath(t *testing.T) {
	// With a non-default file system, reads go through the fs layer
	// instead of mmap so read faults can be injected too.
	tmpDir := t.TempDir()
	ffs := fs.NewFaultyFS(fs.LocalFS{})
	store := NewLocalStoreWithFS(tmpDir, ffs)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "blob", []byte("0123456789")))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	_, isMappable := blob.(Mappable)
	assert.False(t, isMappable)

	assert.Equal(t, int64(10), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, "3456", string(buf[:n]))

	r, err := blob.ReadRange(ctx, 8, 10)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, "89", string(content))
}
