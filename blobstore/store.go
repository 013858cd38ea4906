package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing immutable data blobs
// (snapshots, pointer documents).
//
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a new writable blob. The blob becomes visible under
	// its name when Close returns without error.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically: readers observe either the previous
	// content or the full new content, never a prefix.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix,
	// in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over [off, off+length), clamped to the
	// blob size. An offset at or past the end returns io.EOF. Cloud
	// backends satisfy this with a single ranged request.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a handle to a blob being written.
//
// Call Sync before Close to make the contents durable; Close commits the
// blob under its name.
type WritableBlob interface {
	io.Writer
	io.Closer

	// Sync flushes written data to stable storage.
	Sync() error
}

// Aborter is an optional interface for WritableBlobs that can discard an
// in-flight write without committing it.
type Aborter interface {
	Abort() error
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}

// ReadAll reads the full content of a named blob.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	if m, ok := blob.(Mappable); ok {
		mapped, err := m.Bytes()
		if err == nil {
			// Copy out: the mapping dies with the blob handle.
			data := make([]byte, len(mapped))
			copy(data, mapped)
			return data, nil
		}
	}

	data := make([]byte, blob.Size())

	n, err := blob.ReadAt(ctx, data, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}

	if int64(n) != blob.Size() {
		return nil, fmt.Errorf("read blob %s: short read (%d of %d bytes)", name, n, blob.Size())
	}

	return data, nil
}
