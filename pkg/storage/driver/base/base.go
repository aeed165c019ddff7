// Package base provides a decorator over a StorageDriver that adds
// duration logging and an optional concurrency regulator, so a concrete
// driver (filesystem, inmemory, ...) only has to implement the bare
// interface. Adapted from the teacher's registry/storage/driver/base
// package; the embedding pattern it documents (declare an unexported
// driver, embed base.Base behind an exported Driver) is kept verbatim
// because it's the idiom, not the content, that's being learned here.
package base

import (
	"context"
	"io"
	"time"

	"github.com/spkfs/spfs/internal/dcontext"
	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

// Base wraps a StorageDriver implementation, adding debug-level duration
// logging around every call except Name and Walk, which pass straight
// through.
type Base struct {
	storagedriver.StorageDriver
}

func logged(ctx context.Context, method string) func() {
	start := time.Now()
	return func() {
		dcontext.GetLogger(ctx).Debugf("storage.driver.%s took %s", method, time.Since(start))
	}
}

func (b Base) GetContent(ctx context.Context, path string) ([]byte, error) {
	defer logged(ctx, "GetContent")()
	return b.StorageDriver.GetContent(ctx, path)
}

func (b Base) PutContent(ctx context.Context, path string, content []byte) error {
	defer logged(ctx, "PutContent")()
	return b.StorageDriver.PutContent(ctx, path, content)
}

func (b Base) Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	defer logged(ctx, "Reader")()
	return b.StorageDriver.Reader(ctx, path, offset)
}

func (b Base) Writer(ctx context.Context, path string, append bool) (storagedriver.FileWriter, error) {
	defer logged(ctx, "Writer")()
	return b.StorageDriver.Writer(ctx, path, append)
}

func (b Base) Stat(ctx context.Context, path string) (storagedriver.FileInfo, error) {
	defer logged(ctx, "Stat")()
	return b.StorageDriver.Stat(ctx, path)
}

func (b Base) List(ctx context.Context, path string) ([]string, error) {
	defer logged(ctx, "List")()
	return b.StorageDriver.List(ctx, path)
}

func (b Base) Move(ctx context.Context, src, dst string) error {
	defer logged(ctx, "Move")()
	return b.StorageDriver.Move(ctx, src, dst)
}

func (b Base) Delete(ctx context.Context, path string) error {
	defer logged(ctx, "Delete")()
	return b.StorageDriver.Delete(ctx, path)
}

// Regulator wraps a StorageDriver, bounding the number of concurrent
// GetContent, PutContent, Reader and Writer calls that reach the underlying
// implementation; Stat, List, Move, Delete and Walk are not bounded.
type Regulator struct {
	storagedriver.StorageDriver
	sem chan struct{}
}

// NewRegulator returns d unchanged if limit is 0, otherwise wraps it with a
// semaphore admitting at most limit concurrent calls.
func NewRegulator(d storagedriver.StorageDriver, limit uint64) storagedriver.StorageDriver {
	if limit == 0 {
		return d
	}
	return &Regulator{StorageDriver: d, sem: make(chan struct{}, limit)}
}

func (r *Regulator) enter() func() {
	r.sem <- struct{}{}
	return func() { <-r.sem }
}

func (r *Regulator) GetContent(ctx context.Context, path string) ([]byte, error) {
	defer r.enter()()
	return r.StorageDriver.GetContent(ctx, path)
}

func (r *Regulator) PutContent(ctx context.Context, path string, content []byte) error {
	defer r.enter()()
	return r.StorageDriver.PutContent(ctx, path, content)
}

func (r *Regulator) Reader(ctx context.Context, path string, offset int64) (io.ReadCloser, error) {
	defer r.enter()()
	return r.StorageDriver.Reader(ctx, path, offset)
}

func (r *Regulator) Writer(ctx context.Context, path string, append bool) (storagedriver.FileWriter, error) {
	defer r.enter()()
	return r.StorageDriver.Writer(ctx, path, append)
}
