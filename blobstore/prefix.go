package blobstore

import (
	"context"
	"strings"
)

// PrefixStore namespaces another BlobStore under a fixed key prefix.
//
// Several independent consumers can share one backend: a store wrapped
// with prefix "shard-00" keeps its blobs fully disjoint from a sibling
// wrapped with "shard-01". Sharded allocators use this to place every
// shard's archive on a single bucket.
//
// The inner store must accept names containing '/'; object stores and
// the memory store do, while LocalStore needs the matching subdirectory
// to exist up front.
type PrefixStore struct {
	inner  BlobStore
	prefix string
}

// NewPrefixStore wraps inner so that every blob name is placed under prefix.
func NewPrefixStore(inner BlobStore, prefix string) *PrefixStore {
	return &PrefixStore{
		inner:  inner,
		prefix: strings.TrimSuffix(prefix, "/") + "/",
	}
}

func (s *PrefixStore) key(name string) string {
	return s.prefix + name
}

// Open opens a blob for reading.
func (s *PrefixStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.inner.Open(ctx, s.key(name))
}

// Create creates a new writable blob.
func (s *PrefixStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, s.key(name))
}

// Put writes a blob atomically.
func (s *PrefixStore) Put(ctx context.Context, name string, data []byte) error {
	return s.inner.Put(ctx, s.key(name), data)
}

// Delete removes a blob.
func (s *PrefixStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, s.key(name))
}

// List returns the names under the store's namespace with the given
// prefix, relative to the namespace.
func (s *PrefixStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.inner.List(ctx, s.key(prefix))
	if err != nil {
		return nil, err
	}

	for i, name := range names {
		names[i] = strings.TrimPrefix(name, s.prefix)
	}

	return names, nil
}
