package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/cache"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

// Database stores the object graph (Blob, Tree, Manifest, Layer, Platform)
// content-addressed under objectsRoot, grounded on the teacher's blob
// store write-to-temp-then-rename discipline.
type Database struct {
	driver storagedriver.StorageDriver
	cache  cache.DescriptorCache
}

// NewDatabase wraps d as an object Database.
func NewDatabase(d storagedriver.StorageDriver) *Database {
	return &Database{driver: d}
}

// SetDescriptorCache attaches an optional cache.DescriptorCache that
// StatObject consults before touching the driver.
func (db *Database) SetDescriptorCache(c cache.DescriptorCache) {
	db.cache = c
}

// StatObject returns d's kind and encoded size, preferring the attached
// DescriptorCache and falling back to a full read on a miss.
func (db *Database) StatObject(ctx context.Context, d digest.Digest) (cache.Descriptor, error) {
	if db.cache != nil {
		if desc, err := db.cache.Stat(ctx, d); err == nil {
			return desc, nil
		}
	}

	obj, err := db.ReadObject(ctx, d)
	if err != nil {
		return cache.Descriptor{}, err
	}
	encoded, err := graph.EncodeObject(obj)
	if err != nil {
		return cache.Descriptor{}, err
	}
	desc := cache.Descriptor{Kind: obj.Kind(), Size: int64(len(encoded))}
	if db.cache != nil {
		db.cache.SetDescriptor(ctx, d, desc)
	}
	return desc, nil
}

// WriteObject encodes obj, writes it under its content digest and returns
// that digest. Idempotent: writing an already-present object is a no-op
// save for re-deriving its digest.
func (db *Database) WriteObject(ctx context.Context, obj graph.Object) (digest.Digest, error) {
	encoded, err := graph.EncodeObject(obj)
	if err != nil {
		return digest.Digest{}, err
	}
	d := digest.FromBytes(encoded)

	if ok, _ := db.HasObject(ctx, d); ok {
		return d, nil
	}

	final := objectPath(d)
	tmp := objectTempPath(objectsRoot, uuid.NewString())
	if err := db.driver.PutContent(ctx, tmp, encoded); err != nil {
		return digest.Digest{}, fmt.Errorf("storage: write object %s: %w", d, err)
	}
	if err := db.driver.Move(ctx, tmp, final); err != nil {
		// Another writer may have already landed this exact content; since
		// the final path is purely a function of the digest, observing it
		// already present is success, not a conflict.
		if ok, _ := db.HasObject(ctx, d); ok {
			return d, nil
		}
		return digest.Digest{}, fmt.Errorf("storage: commit object %s: %w", d, err)
	}
	dcontext.GetLogger(ctx).Debugf("storage: wrote object %s (%s)", d, objectKindName(obj))
	if db.cache != nil {
		db.cache.SetDescriptor(ctx, d, cache.Descriptor{Kind: obj.Kind(), Size: int64(len(encoded))})
	}
	return d, nil
}

// ReadObject decodes and returns the object stored at d.
func (db *Database) ReadObject(ctx context.Context, d digest.Digest) (graph.Object, error) {
	raw, err := db.driver.GetContent(ctx, objectPath(d))
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, graph.UnknownObjectError{Digest: d}
		}
		return nil, err
	}
	return graph.DecodeObject(raw)
}

// HasObject reports whether d is present in the database.
func (db *Database) HasObject(ctx context.Context, d digest.Digest) (bool, error) {
	_, err := db.driver.Stat(ctx, objectPath(d))
	if err == nil {
		return true, nil
	}
	if _, ok := err.(storagedriver.PathNotFoundError); ok {
		return false, nil
	}
	return false, err
}

// ResolveFullDigest expands a hex prefix to the one full digest it
// identifies, failing if zero or more than one object matches.
func (db *Database) ResolveFullDigest(ctx context.Context, prefix string) (digest.Digest, error) {
	prefix = strings.ToLower(prefix)
	if len(prefix) == digest.Size*2 {
		if d, err := digest.FromHex(prefix); err == nil {
			if ok, _ := db.HasObject(ctx, d); ok {
				return d, nil
			}
		}
	}

	var matches []digest.Digest
	err := db.IterDigests(ctx, func(d digest.Digest) error {
		if strings.HasPrefix(d.Hex(), prefix) {
			matches = append(matches, d)
		}
		return nil
	})
	if err != nil {
		return digest.Digest{}, err
	}

	switch len(matches) {
	case 0:
		return digest.Digest{}, graph.UnknownReferenceError{Ref: prefix}
	case 1:
		return matches[0], nil
	default:
		sort.Slice(matches, func(i, j int) bool { return matches[i].Hex() < matches[j].Hex() })
		return digest.Digest{}, graph.AmbiguousReferenceError{Ref: prefix, Candidates: matches}
	}
}

// IterDigests calls f once for every digest stored in the database, in no
// particular order, stopping early if f returns an error.
func (db *Database) IterDigests(ctx context.Context, f func(digest.Digest) error) error {
	return db.driver.Walk(ctx, objectsRoot, func(info storagedriver.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		d, err := pathToDigest(objectsRoot, info.Path())
		if err != nil {
			return nil
		}
		return f(d)
	})
}

// pathToDigest reverses shardedPath for a root/dd/rest layout.
func pathToDigest(root, p string) (digest.Digest, error) {
	rel := strings.TrimPrefix(p, root+"/")
	if rel == p {
		return digest.Digest{}, fmt.Errorf("storage: path %s not under %s", p, root)
	}
	hex := strings.ReplaceAll(rel, "/", "")
	return digest.FromHex(hex)
}

func objectKindName(obj graph.Object) string {
	switch obj.Kind() {
	case graph.KindBlob:
		return "blob"
	case graph.KindTree:
		return "tree"
	case graph.KindManifest:
		return "manifest"
	case graph.KindLayer:
		return "layer"
	case graph.KindPlatform:
		return "platform"
	default:
		return "unknown"
	}
}
