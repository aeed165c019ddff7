// Package driver defines the storage backend contract used underneath the
// SPFS object database, payload store and tag store. It is the same
// abstraction the teacher's registry/storage/driver package uses to let a
// content-addressable blob store run over local disk, in-memory state, or
// (via pkg/remote) a network backend, without the higher layers caring
// which.
package driver

import (
	"context"
	"fmt"
	"io"
)

// StorageDriver is a generic, path-addressed byte store. Paths are
// slash-separated and rooted at "/"; a driver implementation maps them
// onto whatever it actually stores bytes in (a local directory tree, a
// map, an HTTP backend).
type StorageDriver interface {
	// Name returns the human-readable name of the driver implementation.
	Name() string

	// GetContent retrieves the content stored at path as a []byte. Should
	// only be used for small objects (tag records, object/payload
	// headers); large payloads should use Reader/Writer.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent stores content at path, replacing any existing content.
	PutContent(ctx context.Context, path string, content []byte) error

	// Reader returns an io.ReadCloser for the content stored at path,
	// starting at the given byte offset.
	Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error)

	// Writer returns a FileWriter for writing to path. If append is
	// false, any existing content is truncated; the caller must call
	// Commit to make the write durable, or Cancel to discard it.
	Writer(ctx context.Context, path string, append bool) (FileWriter, error)

	// Stat returns FileInfo describing the object at path.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the paths of the direct descendants of path.
	List(ctx context.Context, path string) ([]string, error)

	// Move moves the object at sourcePath to destPath, replacing any
	// existing object at destPath.
	Move(ctx context.Context, sourcePath, destPath string) error

	// Delete recursively deletes the object (and any descendants) stored
	// at path.
	Delete(ctx context.Context, path string) error

	// Walk traverses the driver's namespace starting at path, calling f
	// for every descendant file and directory.
	Walk(ctx context.Context, path string, f WalkFn) error
}

// FileWriter is a resumable, two-phase (commit/cancel) write handle.
type FileWriter interface {
	io.WriteCloser

	// Size returns the number of bytes written so far.
	Size() int64

	// Commit flushes and finalizes the write, making it visible to
	// readers at the target path.
	Commit(ctx context.Context) error

	// Cancel discards the write and any partial data.
	Cancel(ctx context.Context) error
}

// FileInfo describes an object returned by Stat or Walk.
type FileInfo interface {
	Path() string
	Size() int64
	IsDir() bool
}

// WalkFn is invoked once per descendant during Walk. Returning ErrSkipDir
// from a directory's callback skips its subtree without aborting the walk.
type WalkFn func(FileInfo) error

// ErrSkipDir instructs Walk to not descend into the current directory.
var ErrSkipDir = fmt.Errorf("driver: skip this directory")

// PathNotFoundError is returned when an operation targets a path that does
// not exist.
type PathNotFoundError struct {
	Path       string
	DriverName string
}

func (e PathNotFoundError) Error() string {
	return fmt.Sprintf("%s: path not found: %s", e.DriverName, e.Path)
}

// InvalidOffsetError is returned when Reader is asked to seek past the end
// of the object at Path.
type InvalidOffsetError struct {
	Path       string
	Offset     int64
	DriverName string
}

func (e InvalidOffsetError) Error() string {
	return fmt.Sprintf("%s: invalid offset %d for path %s", e.DriverName, e.Offset, e.Path)
}

// Error wraps a driver-specific failure with the driver's name, mirroring
// the teacher's registry/storage/driver.Error.
type Error struct {
	DriverName string
	Detail     error
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.DriverName, e.Detail)
}

func (e Error) Unwrap() error { return e.Detail }
