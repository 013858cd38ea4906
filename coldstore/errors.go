package coldstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSnapshot is returned when snapshot data is malformed or corrupted.
	ErrInvalidSnapshot = errors.New("coldstore: invalid snapshot data")

	// ErrUnsupportedVersion is returned when the snapshot format version is unknown.
	ErrUnsupportedVersion = errors.New("coldstore: unsupported snapshot version")

	// ErrChecksum is returned when the snapshot payload fails checksum verification.
	ErrChecksum = errors.New("coldstore: snapshot checksum mismatch")
)

// SnapshotError records a failed archive operation together with the blob
// it was acting on.
type SnapshotError struct {
	Op   string // "open", "encode", "write", "commit"
	Name string // blob name, empty when the failure is not tied to one
	Err  error
}

func (e *SnapshotError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("coldstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("coldstore: %s %s: %v", e.Op, e.Name, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}
