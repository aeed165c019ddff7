// Package filesystem implements the StorageDriver interface over a local
// directory tree. Adapted from the teacher's
// registry/storage/driver/filesystem package: writes go straight to the
// target path (staging through a temp path and renaming is done one layer
// up, in pkg/storage), with a bufio-wrapped FileWriter and a
// factory-registered constructor, generalized to the path-addressed
// interface in pkg/storage/driver.
package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"

	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
	"github.com/spkfs/spfs/pkg/storage/driver/base"
	"github.com/spkfs/spfs/pkg/storage/driver/factory"
)

const (
	driverName           = "filesystem"
	defaultRootDirectory = "/var/lib/spfs"
	defaultMaxThreads    = uint64(100)
	minThreads           = uint64(25)
)

func init() {
	factory.Register(driverName, &filesystemDriverFactory{})
}

type filesystemDriverFactory struct{}

func (f *filesystemDriverFactory) Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	return FromParameters(parameters)
}

// DriverParameters configures a filesystem driver.
type DriverParameters struct {
	RootDirectory string
	MaxThreads    uint64
}

// Driver is the exported, regulated filesystem StorageDriver.
type Driver struct {
	baseEmbed
}

type baseEmbed struct {
	base.Base
}

type driver struct {
	rootDirectory string
}

// FromParameters constructs a Driver from a generic parameter map, as used
// by factory.Create.
func FromParameters(parameters map[string]interface{}) (*Driver, error) {
	var (
		rootDirectory = defaultRootDirectory
		maxThreads    = defaultMaxThreads
	)
	if parameters != nil {
		if rd, ok := parameters["rootdirectory"]; ok {
			rootDirectory = fmt.Sprint(rd)
		}
		if mt, ok := parameters["maxthreads"]; ok {
			switch v := mt.(type) {
			case uint64:
				maxThreads = v
			case string:
				if n, err := strconv.ParseUint(v, 10, 64); err == nil {
					maxThreads = n
				}
			}
		}
	}
	if maxThreads < minThreads {
		maxThreads = minThreads
	}
	return New(DriverParameters{RootDirectory: rootDirectory, MaxThreads: maxThreads}), nil
}

// New constructs a Driver rooted at params.RootDirectory, with at most
// params.MaxThreads concurrent backend operations.
func New(params DriverParameters) *Driver {
	d := &driver{rootDirectory: params.RootDirectory}
	return &Driver{
		baseEmbed: baseEmbed{
			Base: base.Base{
				StorageDriver: base.NewRegulator(d, params.MaxThreads),
			},
		},
	}
}

func (d *driver) Name() string { return driverName }

func (d *driver) fullPath(subPath string) string {
	return filepath.Join(d.rootDirectory, subPath)
}

func (d *driver) GetContent(ctx context.Context, subPath string) ([]byte, error) {
	rc, err := d.Reader(ctx, subPath, 0)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (d *driver) PutContent(ctx context.Context, subPath string, contents []byte) error {
	writer, err := d.Writer(ctx, subPath, false)
	if err != nil {
		return err
	}
	defer writer.Close()
	if _, err := writer.Write(contents); err != nil {
		writer.Cancel(ctx)
		return err
	}
	return writer.Commit(ctx)
}

func (d *driver) Reader(ctx context.Context, subPath string, offset int64) (io.ReadCloser, error) {
	file, err := os.OpenFile(d.fullPath(subPath), os.O_RDONLY, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return nil, err
	}
	if offset > 0 {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		if info.Size() < offset {
			file.Close()
			return nil, storagedriver.InvalidOffsetError{Path: subPath, Offset: offset, DriverName: driverName}
		}
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}
	return file, nil
}

func (d *driver) Writer(ctx context.Context, subPath string, doAppend bool) (storagedriver.FileWriter, error) {
	fullPath := d.fullPath(subPath)
	parentDir := path.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return nil, err
	}

	fp, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}

	var offset int64
	if !doAppend {
		if err := fp.Truncate(0); err != nil {
			fp.Close()
			return nil, err
		}
	} else {
		n, err := fp.Seek(0, io.SeekEnd)
		if err != nil {
			fp.Close()
			return nil, err
		}
		offset = n
	}
	return newFileWriter(fp, offset), nil
}

func (d *driver) Stat(ctx context.Context, subPath string) (storagedriver.FileInfo, error) {
	fi, err := os.Stat(d.fullPath(subPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return nil, err
	}
	return fileInfo{FileInfo: fi, path: subPath}, nil
}

func (d *driver) List(ctx context.Context, subPath string) ([]string, error) {
	full := d.fullPath(subPath)
	dir, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
		}
		return nil, err
	}
	defer dir.Close()

	names, err := dir.Readdirnames(0)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, path.Join(subPath, n))
	}
	return out, nil
}

func (d *driver) Move(ctx context.Context, sourcePath, destPath string) error {
	source := d.fullPath(sourcePath)
	dest := d.fullPath(destPath)
	if err := os.MkdirAll(path.Dir(dest), 0755); err != nil {
		return err
	}
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return storagedriver.PathNotFoundError{Path: sourcePath, DriverName: driverName}
	}
	return os.Rename(source, dest)
}

func (d *driver) Delete(ctx context.Context, subPath string) error {
	full := d.fullPath(subPath)
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return storagedriver.PathNotFoundError{Path: subPath, DriverName: driverName}
	}
	return os.RemoveAll(full)
}

func (d *driver) Walk(ctx context.Context, subPath string, f storagedriver.WalkFn) error {
	return storagedriver.WalkFallback(ctx, d, subPath, f)
}

type fileInfo struct {
	os.FileInfo
	path string
}

func (fi fileInfo) Path() string { return fi.path }
func (fi fileInfo) Size() int64  { return fi.FileInfo.Size() }
func (fi fileInfo) IsDir() bool  { return fi.FileInfo.IsDir() }

type fileWriter struct {
	file      *os.File
	size      int64
	bw        *bufio.Writer
	closed    bool
	committed bool
	cancelled bool
}

func newFileWriter(file *os.File, size int64) *fileWriter {
	return &fileWriter{
		file: file,
		size: size,
		bw:   bufio.NewWriter(file),
	}
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	if fw.closed {
		return 0, fmt.Errorf("filesystem: already closed")
	} else if fw.committed {
		return 0, fmt.Errorf("filesystem: already committed")
	} else if fw.cancelled {
		return 0, fmt.Errorf("filesystem: already cancelled")
	}
	n, err := fw.bw.Write(p)
	fw.size += int64(n)
	return n, err
}

func (fw *fileWriter) Size() int64 { return fw.size }

func (fw *fileWriter) Close() error {
	if fw.closed {
		return fmt.Errorf("filesystem: already closed")
	}
	if err := fw.bw.Flush(); err != nil {
		return err
	}
	if err := fw.file.Sync(); err != nil {
		return err
	}
	if err := fw.file.Close(); err != nil {
		return err
	}
	fw.closed = true
	return nil
}

func (fw *fileWriter) Cancel(ctx context.Context) error {
	if fw.closed {
		return fmt.Errorf("filesystem: already closed")
	}
	fw.cancelled = true
	fw.file.Close()
	return os.Remove(fw.file.Name())
}

func (fw *fileWriter) Commit(ctx context.Context) error {
	if fw.closed {
		return fmt.Errorf("filesystem: already closed")
	} else if fw.committed {
		return fmt.Errorf("filesystem: already committed")
	} else if fw.cancelled {
		return fmt.Errorf("filesystem: already cancelled")
	}
	if err := fw.bw.Flush(); err != nil {
		return err
	}
	if err := fw.file.Sync(); err != nil {
		return err
	}
	fw.committed = true
	return nil
}
