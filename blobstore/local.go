package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/idgo/internal/fs"
	"github.com/hupe1980/idgo/internal/mmap"
)

// LocalStore implements BlobStore on the local file system.
//
// Writes are atomic: data goes to a temporary file that is fsynced and then
// renamed over the final name, followed by a directory sync. Reads use mmap
// when running on the real file system.
type LocalStore struct {
	root string
	fs   fs.FileSystem
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreWithFS(root, fs.Default)
}

// NewLocalStoreWithFS creates a LocalStore on the given file system.
// Tests use this to inject fault-injecting file systems.
func NewLocalStoreWithFS(root string, fsys fs.FileSystem) *LocalStore {
	if fsys == nil {
		fsys = fs.Default
	}
	return &LocalStore{root: root, fs: fsys}
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	path := filepath.Join(s.root, name)

	// mmap gives zero-copy reads, but only the real file system supports it.
	// Injected file systems take the plain read path so faults apply.
	if _, ok := s.fs.(fs.LocalFS); ok {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}

		// Snapshot decoding walks the blob front to back.
		_ = m.Advise(mmap.AccessSequential)

		return &localBlob{m: m}, nil
	}

	f, err := s.fs.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &localFileBlob{f: f, size: fi.Size()}, nil
}

// Create creates a new writable blob. Data is staged in a temporary file;
// Close renames it into place and syncs the directory.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := filepath.Join(s.root, name)
	tmpPath := path + ".tmp"

	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}

	return &localWritableBlob{
		store:   s,
		f:       f,
		path:    path,
		tmpPath: tmpPath,
	}, nil
}

// Put writes a blob atomically via the temporary-file/rename sequence.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		w.(*localWritableBlob).Abort()
		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := w.Sync(); err != nil {
		w.(*localWritableBlob).Abort()
		return fmt.Errorf("sync %s: %w", name, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}

	return nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(filepath.Join(s.root, name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns the names of all blobs with the given prefix.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

// syncDir makes a preceding rename durable.
func (s *LocalStore) syncDir() error {
	f, err := s.fs.OpenFile(s.root, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// localBlob is an mmap-backed read handle.
type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.m.ReadAt(p, off)
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	data := b.m.Bytes()
	if off < 0 {
		return nil, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(data)) {
		return nil, io.EOF
	}
	end := off + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Size())
}

func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}

// localFileBlob is a plain file-descriptor read handle, used when an
// injected file system replaces the real one.
type localFileBlob struct {
	f    fs.File
	size int64
}

func (b *localFileBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return b.f.ReadAt(p, off)
}

func (b *localFileBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 {
		return nil, fmt.Errorf("negative offset %d", off)
	}
	if off >= b.size {
		return nil, io.EOF
	}
	if off+length > b.size {
		length = b.size - off
	}

	buf := make([]byte, length)

	n, err := b.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(buf[:n])), nil
}

func (b *localFileBlob) Close() error {
	return b.f.Close()
}

func (b *localFileBlob) Size() int64 {
	return b.size
}

// localWritableBlob stages writes in a temporary file and commits on Close.
type localWritableBlob struct {
	store   *LocalStore
	f       fs.File
	path    string
	tmpPath string
	aborted bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}

func (w *localWritableBlob) Close() error {
	if w.aborted {
		return nil
	}

	if err := w.f.Close(); err != nil {
		w.store.fs.Remove(w.tmpPath)
		return err
	}

	if err := w.store.fs.Rename(w.tmpPath, w.path); err != nil {
		w.store.fs.Remove(w.tmpPath)
		return err
	}

	return w.store.syncDir()
}

// Abort closes and removes the temporary file without committing.
func (w *localWritableBlob) Abort() error {
	if w.aborted {
		return nil
	}
	w.aborted = true

	w.f.Close()

	return w.store.fs.Remove(w.tmpPath)
}
