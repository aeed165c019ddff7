package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/digest"
	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

// PayloadStore holds the raw content-addressed byte payloads referenced by
// Blob objects, kept separate from the object graph the way the teacher
// keeps blob data segregated from link metadata.
type PayloadStore struct {
	driver storagedriver.StorageDriver
}

// NewPayloadStore wraps d as a PayloadStore.
func NewPayloadStore(d storagedriver.StorageDriver) *PayloadStore {
	return &PayloadStore{driver: d}
}

// WritePayload consumes r, hashing as it streams to a temp location, then
// renames into its final content-addressed path. Returns the digest and
// number of bytes written. After this returns, OpenPayload(digest)
// succeeds durably.
func (ps *PayloadStore) WritePayload(ctx context.Context, r io.Reader) (digest.Digest, int64, error) {
	tmp := objectTempPath(payloadsRoot, uuid.NewString())
	w, err := ps.driver.Writer(ctx, tmp, false)
	if err != nil {
		return digest.Digest{}, 0, fmt.Errorf("storage: open payload temp: %w", err)
	}

	hasher := digest.NewHasher()
	tee := io.TeeReader(r, hasher)
	n, err := io.Copy(w, tee)
	if err != nil {
		w.Cancel(ctx)
		return digest.Digest{}, 0, fmt.Errorf("storage: write payload: %w", err)
	}
	if err := w.Commit(ctx); err != nil {
		return digest.Digest{}, 0, fmt.Errorf("storage: commit payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return digest.Digest{}, 0, err
	}

	d := hasher.Digest()
	final := payloadPath(d)
	if err := ps.driver.Move(ctx, tmp, final); err != nil {
		if ok, _ := ps.HasPayload(ctx, d); ok {
			return d, n, nil
		}
		return digest.Digest{}, 0, fmt.Errorf("storage: commit payload %s: %w", d, err)
	}
	dcontext.GetLogger(ctx).Debugf("storage: wrote payload %s (%d bytes)", d, n)
	return d, n, nil
}

// OpenPayload returns a reader for the payload stored under d.
func (ps *PayloadStore) OpenPayload(ctx context.Context, d digest.Digest) (io.ReadCloser, error) {
	rc, err := ps.driver.Reader(ctx, payloadPath(d), 0)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, UnknownPayloadError{Digest: d}
		}
		return nil, err
	}
	return rc, nil
}

// RemovePayload deletes the payload stored under d.
func (ps *PayloadStore) RemovePayload(ctx context.Context, d digest.Digest) error {
	if err := ps.driver.Delete(ctx, payloadPath(d)); err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return UnknownPayloadError{Digest: d}
		}
		return err
	}
	return nil
}

// HasPayload reports whether d is stored.
func (ps *PayloadStore) HasPayload(ctx context.Context, d digest.Digest) (bool, error) {
	_, err := ps.driver.Stat(ctx, payloadPath(d))
	if err == nil {
		return true, nil
	}
	if _, ok := err.(storagedriver.PathNotFoundError); ok {
		return false, nil
	}
	return false, err
}

// IterPayloadDigests calls f once per stored payload digest.
func (ps *PayloadStore) IterPayloadDigests(ctx context.Context, f func(digest.Digest) error) error {
	return ps.driver.Walk(ctx, payloadsRoot, func(info storagedriver.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		d, err := pathToDigest(payloadsRoot, info.Path())
		if err != nil {
			return nil
		}
		return f(d)
	})
}

// UnknownPayloadError is returned when a payload digest is not present in
// the store.
type UnknownPayloadError struct {
	Digest digest.Digest
}

func (e UnknownPayloadError) Error() string {
	return fmt.Sprintf("storage: unknown payload %s", e.Digest)
}
