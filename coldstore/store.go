package coldstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/idgo/blobstore"
	"github.com/hupe1980/idgo/codec"
	"github.com/hupe1980/idgo/idset"
	"github.com/hupe1980/idgo/resource"
)

const (
	// CurrentName is the pointer blob flipped atomically on every commit.
	CurrentName = "CURRENT"

	// snapshotPrefix prefixes generation snapshot blobs.
	snapshotPrefix = "SNAP-"
)

// Logger is a simple interface for logging.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// noopLogger is a default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Infof(format string, args ...interface{})  {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the codec for the CURRENT pointer document.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithCompression sets the snapshot payload compression.
func WithCompression(c Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithController sets the resource controller that meters backend writes.
func WithController(rc *resource.Controller) Option {
	return func(s *Store) {
		s.rc = rc
	}
}

// currentDoc is the CURRENT pointer document.
type currentDoc struct {
	Codec      string `json:"codec"`
	Generation uint64 `json:"generation"`
	Snapshot   string `json:"snapshot"`
}

// Store is the durable archive of retired ids.
//
// The full set is kept resident, so membership checks never touch the
// backend. Mutations are copy-on-write: they persist a new generation and
// flip CURRENT before touching the resident set, so any failure, at any
// point, leaves both the visible archive and the in-memory state exactly
// as they were.
//
// Store is safe for concurrent use.
type Store struct {
	blobs       blobstore.BlobStore
	codec       codec.Codec
	compression Compression
	logger      Logger
	rc          *resource.Controller

	mu         sync.RWMutex
	resident   *idset.Set
	generation uint64
	snapshot   string // committed snapshot blob name, "" before the first commit
}

// Open loads the archive from the blob store. A store without a committed
// generation yields an empty archive; stale snapshots left behind by
// crashes are swept best-effort.
func Open(ctx context.Context, blobs blobstore.BlobStore, opts ...Option) (*Store, error) {
	s := &Store{
		blobs:       blobs,
		codec:       codec.Default,
		compression: CompressionZSTD,
		logger:      &noopLogger{},
		resident:    idset.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	s.sweep(ctx)

	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	data, err := blobstore.ReadAll(ctx, s.blobs, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil // nothing committed yet
		}
		return &SnapshotError{Op: "open", Name: CurrentName, Err: err}
	}

	var doc currentDoc
	if err := s.codec.Unmarshal(data, &doc); err != nil {
		return &SnapshotError{Op: "open", Name: CurrentName, Err: fmt.Errorf("%w: pointer document: %v", ErrInvalidSnapshot, err)}
	}
	if _, ok := codec.ByName(doc.Codec); !ok {
		return &SnapshotError{Op: "open", Name: CurrentName, Err: fmt.Errorf("%w: unknown codec %q", ErrInvalidSnapshot, doc.Codec)}
	}
	if doc.Snapshot == "" {
		return &SnapshotError{Op: "open", Name: CurrentName, Err: fmt.Errorf("%w: pointer document names no snapshot", ErrInvalidSnapshot)}
	}

	raw, err := blobstore.ReadAll(ctx, s.blobs, doc.Snapshot)
	if err != nil {
		return &SnapshotError{Op: "open", Name: doc.Snapshot, Err: err}
	}

	set, err := DecodeSnapshot(raw)
	if err != nil {
		return &SnapshotError{Op: "open", Name: doc.Snapshot, Err: err}
	}

	s.resident = set
	s.generation = doc.Generation
	s.snapshot = doc.Snapshot

	return nil
}

// sweep deletes snapshot blobs other than the committed one. They are left
// behind by crashes between a snapshot write and the CURRENT flip.
func (s *Store) sweep(ctx context.Context) {
	names, err := s.blobs.List(ctx, snapshotPrefix)
	if err != nil {
		s.logger.Errorf("coldstore: list snapshots: %v", err)
		return
	}

	for _, name := range names {
		if name == s.snapshot {
			continue
		}
		if err := s.blobs.Delete(ctx, name); err != nil {
			s.logger.Errorf("coldstore: sweep %s: %v", name, err)
			continue
		}
		s.logger.Infof("coldstore: swept stale snapshot %s", name)
	}
}

// Contains reports whether id is archived. Served from the resident set.
func (s *Store) Contains(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resident.Contains(id)
}

// Len returns the number of archived ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resident.Len()
}

// Members returns the resident set. Callers must treat it as read-only; it
// stays coherent across later commits because commits swap in fresh sets
// instead of mutating in place.
func (s *Store) Members() *idset.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resident
}

// Generation returns the committed generation, 0 before the first commit.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Merge archives every id in batch and persists the result as a new
// generation. An empty or nil batch is a no-op. On error nothing changes,
// neither the resident set nor the committed generation.
func (s *Store) Merge(ctx context.Context, batch *idset.Set) error {
	if batch == nil || batch.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.resident.Clone()
	next.Or(batch)

	return s.commit(ctx, next)
}

// Remove deletes a single id from the archive and reports whether it was
// present. Removing an absent id performs no backend I/O.
func (s *Store) Remove(ctx context.Context, id uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resident.Contains(id) {
		return false, nil
	}

	next := s.resident.Clone()
	next.Remove(id)

	if err := s.commit(ctx, next); err != nil {
		return false, err
	}

	return true, nil
}

// commit persists next under the following generation, flips CURRENT and
// swaps the resident set. Called with mu held.
func (s *Store) commit(ctx context.Context, next *idset.Set) error {
	gen := s.generation + 1
	name := fmt.Sprintf("%s%06d", snapshotPrefix, gen)

	data, err := EncodeSnapshot(next, s.compression)
	if err != nil {
		return &SnapshotError{Op: "encode", Name: name, Err: err}
	}

	if err := s.writeBlob(ctx, name, data); err != nil {
		return &SnapshotError{Op: "write", Name: name, Err: err}
	}

	doc, err := s.codec.Marshal(currentDoc{
		Codec:      s.codec.Name(),
		Generation: gen,
		Snapshot:   name,
	})
	if err != nil {
		_ = s.blobs.Delete(ctx, name)
		return &SnapshotError{Op: "commit", Name: CurrentName, Err: err}
	}

	if err := s.rc.WaitWrite(ctx, len(doc)); err != nil {
		_ = s.blobs.Delete(ctx, name)
		return &SnapshotError{Op: "commit", Name: CurrentName, Err: err}
	}

	// The Put below is the commit point; on failure the new snapshot is
	// unreachable and gets deleted right away (or swept on the next Open).
	if err := s.blobs.Put(ctx, CurrentName, doc); err != nil {
		_ = s.blobs.Delete(ctx, name)
		return &SnapshotError{Op: "commit", Name: CurrentName, Err: err}
	}

	prev := s.snapshot
	s.resident = next
	s.generation = gen
	s.snapshot = name

	if prev != "" {
		if err := s.blobs.Delete(ctx, prev); err != nil {
			s.logger.Errorf("coldstore: delete superseded snapshot %s: %v", prev, err)
		}
	}

	s.logger.Infof("coldstore: committed generation %d (%d ids, %d bytes)", gen, next.Len(), len(data))

	return nil
}

// writeBlob streams data into a new blob through the write budget.
func (s *Store) writeBlob(ctx context.Context, name string, data []byte) error {
	w, err := s.blobs.Create(ctx, name)
	if err != nil {
		return err
	}

	lw := resource.NewRateLimitedWriter(ctx, w, s.rc)
	if _, err := lw.Write(data); err != nil {
		abortBlob(w)
		return err
	}
	if err := w.Sync(); err != nil {
		abortBlob(w)
		return err
	}

	return w.Close()
}

// abortBlob discards an in-flight blob write, falling back to Close for
// backends without abort support.
func abortBlob(w blobstore.WritableBlob) {
	if a, ok := w.(blobstore.Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = w.Close()
}
