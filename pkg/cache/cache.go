// Package cache provides facilities to speed up access to a
// pkg/storage.Database by caching object metadata (kind and size)
// keyed by digest, so callers can avoid a full object decode just to
// answer "what is this and how big is it."
package cache

import (
	"context"
	"errors"

	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

// ErrNotFound is returned by DescriptorCache.Stat when the digest is not
// present in the cache. It is not an error condition for callers: a miss
// just means fall through to the backing Database.
var ErrNotFound = errors.New("cache: descriptor not found")

// Descriptor is the cached metadata for an object: enough to avoid
// re-reading and decoding the object just to learn its kind and size.
type Descriptor struct {
	Kind graph.ObjectKind
	Size int64
}

// DescriptorCache is an optional accelerator in front of
// pkg/storage.Database. Implementations must be safe for concurrent use.
type DescriptorCache interface {
	Stat(ctx context.Context, d digest.Digest) (Descriptor, error)
	SetDescriptor(ctx context.Context, d digest.Digest, desc Descriptor) error
	Clear(ctx context.Context, d digest.Digest) error
}

// ValidateDescriptor provides a shared sanity check for implementations
// before they admit a descriptor into the cache.
func ValidateDescriptor(desc Descriptor) error {
	if desc.Size < 0 {
		return errors.New("cache: invalid descriptor size < 0")
	}
	switch desc.Kind {
	case graph.KindBlob, graph.KindTree, graph.KindManifest, graph.KindLayer, graph.KindPlatform:
		return nil
	default:
		return errors.New("cache: invalid descriptor kind")
	}
}
