// Package inmemory implements the StorageDriver interface over a guarded
// in-process map. Intended for tests and ephemeral repositories; adapted
// from the teacher's registry/storage/driver/inmemory package, simplified
// to a flat path->content map with prefix-based listing rather than the
// teacher's explicit directory-tree node types.
package inmemory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
	"github.com/spkfs/spfs/pkg/storage/driver/base"
	"github.com/spkfs/spfs/pkg/storage/driver/factory"
)

const driverName = "inmemory"

func init() {
	factory.Register(driverName, &inMemoryDriverFactory{})
}

type inMemoryDriverFactory struct{}

func (f *inMemoryDriverFactory) Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	return New(), nil
}

type baseEmbed struct {
	base.Base
}

// Driver is a storagedriver.StorageDriver backed by a process-local map.
type Driver struct {
	baseEmbed
}

type driver struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New constructs an empty in-memory Driver.
func New() *Driver {
	return &Driver{
		baseEmbed: baseEmbed{
			Base: base.Base{
				StorageDriver: &driver{files: make(map[string][]byte)},
			},
		},
	}
}

func normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

func (d *driver) Name() string { return driverName }

func (d *driver) GetContent(ctx context.Context, p string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p = normalize(p)
	content, ok := d.files[p]
	if !ok {
		return nil, storagedriver.PathNotFoundError{Path: p, DriverName: driverName}
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (d *driver) PutContent(ctx context.Context, p string, content []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p = normalize(p)
	buf := make([]byte, len(content))
	copy(buf, content)
	d.files[p] = buf
	return nil
}

func (d *driver) Reader(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	content, err := d.GetContent(ctx, p)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > int64(len(content)) {
		return nil, storagedriver.InvalidOffsetError{Path: p, Offset: offset, DriverName: driverName}
	}
	return io.NopCloser(bytes.NewReader(content[offset:])), nil
}

func (d *driver) Writer(ctx context.Context, p string, append bool) (storagedriver.FileWriter, error) {
	d.mu.Lock()
	p = normalize(p)
	var existing []byte
	if append {
		existing = append2(d.files[p])
	}
	d.mu.Unlock()
	return &writer{d: d, path: p, buf: existing}, nil
}

func append2(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (d *driver) Stat(ctx context.Context, p string) (storagedriver.FileInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p = normalize(p)
	if content, ok := d.files[p]; ok {
		return fileInfo{path: p, size: int64(len(content)), isDir: false}, nil
	}
	prefix := p
	if prefix != "" {
		prefix += "/"
	}
	for fp := range d.files {
		if strings.HasPrefix(fp, prefix) && fp != p {
			return fileInfo{path: p, size: 0, isDir: true}, nil
		}
	}
	return nil, storagedriver.PathNotFoundError{Path: p, DriverName: driverName}
}

func (d *driver) List(ctx context.Context, p string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p = normalize(p)
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var out []string
	for fp := range d.files {
		if !strings.HasPrefix(fp, prefix) || fp == p {
			continue
		}
		rest := strings.TrimPrefix(fp, prefix)
		child := prefix + rest[:indexOrLen(rest, '/')]
		if !seen[child] {
			seen[child] = true
			out = append(out, child)
		}
	}
	if len(out) == 0 {
		if _, ok := d.files[p]; !ok {
			return nil, storagedriver.PathNotFoundError{Path: p, DriverName: driverName}
		}
	}
	sort.Strings(out)
	return out, nil
}

func indexOrLen(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return len(s)
}

func (d *driver) Move(ctx context.Context, sourcePath, destPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sourcePath, destPath = normalize(sourcePath), normalize(destPath)
	content, ok := d.files[sourcePath]
	if !ok {
		return storagedriver.PathNotFoundError{Path: sourcePath, DriverName: driverName}
	}
	d.files[destPath] = content
	delete(d.files, sourcePath)
	return nil
}

func (d *driver) Delete(ctx context.Context, p string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p = normalize(p)
	prefix := p + "/"
	deleted := false
	if _, ok := d.files[p]; ok {
		delete(d.files, p)
		deleted = true
	}
	for fp := range d.files {
		if strings.HasPrefix(fp, prefix) {
			delete(d.files, fp)
			deleted = true
		}
	}
	if !deleted {
		return storagedriver.PathNotFoundError{Path: p, DriverName: driverName}
	}
	return nil
}

func (d *driver) Walk(ctx context.Context, p string, f storagedriver.WalkFn) error {
	return storagedriver.WalkFallback(ctx, d, p, f)
}

type fileInfo struct {
	path  string
	size  int64
	isDir bool
}

func (fi fileInfo) Path() string { return fi.path }
func (fi fileInfo) Size() int64  { return fi.size }
func (fi fileInfo) IsDir() bool  { return fi.isDir }

type writer struct {
	d         *driver
	path      string
	buf       []byte
	closed    bool
	committed bool
	cancelled bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("inmemory: already closed")
	} else if w.committed {
		return 0, fmt.Errorf("inmemory: already committed")
	} else if w.cancelled {
		return 0, fmt.Errorf("inmemory: already cancelled")
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *writer) Size() int64 { return int64(len(w.buf)) }

func (w *writer) Close() error {
	if w.closed {
		return fmt.Errorf("inmemory: already closed")
	}
	w.closed = true
	return nil
}

func (w *writer) Cancel(ctx context.Context) error {
	if w.closed {
		return fmt.Errorf("inmemory: already closed")
	}
	w.cancelled = true
	return nil
}

func (w *writer) Commit(ctx context.Context) error {
	if w.closed {
		return fmt.Errorf("inmemory: already closed")
	} else if w.committed {
		return fmt.Errorf("inmemory: already committed")
	} else if w.cancelled {
		return fmt.Errorf("inmemory: already cancelled")
	}
	w.committed = true
	return w.d.PutContent(ctx, w.path, w.buf)
}
