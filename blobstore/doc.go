// Package blobstore provides storage abstraction for idgo's immutable blobs.
//
// BlobStore is the interface for reading and writing data blobs (archive
// snapshots and their pointer documents). Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: In-memory store for tests and ephemeral allocators
//   - LocalStore: Local filesystem with atomic replace-on-write and mmap reads
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - minio.Store: MinIO and other S3-compatible object stores
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends. The
// one semantic the archive depends on is atomic Put: a reader must observe
// either the previous content of a name or the full new content, never a
// prefix. Filesystem backends get this from rename(2); object stores get it
// from whole-object PUT.
//
// For cloud backends, implement ReadRange for efficient partial reads.
package blobstore
