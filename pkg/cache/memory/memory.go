// Package memory provides an in-process DescriptorCache backed by a
// bounded map. Unlike the registry's LRU-backed cache, eviction here is
// simple FIFO-on-overflow: SPFS descriptor lookups are cheap to
// recompute, so the cache only needs to cut down on repeated decode
// work, not guarantee a hit rate under memory pressure.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/spkfs/spfs/pkg/cache"
	"github.com/spkfs/spfs/pkg/digest"
)

// DefaultSize is used when a non-positive size is passed to New.
const DefaultSize = 10000

type entry struct {
	digest digest.Digest
	desc   cache.Descriptor
}

// Cache is a fixed-capacity, FIFO-evicting DescriptorCache.
type Cache struct {
	mu       sync.Mutex
	size     int
	index    map[digest.Digest]*list.Element
	order    *list.List
}

// New returns a Cache holding at most size descriptors. size <= 0 means
// DefaultSize.
func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache{
		size:  size,
		index: make(map[digest.Digest]*list.Element),
		order: list.New(),
	}
}

func (c *Cache) Stat(ctx context.Context, d digest.Digest) (cache.Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[d]
	if !ok {
		return cache.Descriptor{}, cache.ErrNotFound
	}
	return el.Value.(*entry).desc, nil
}

func (c *Cache) SetDescriptor(ctx context.Context, d digest.Digest, desc cache.Descriptor) error {
	if err := cache.ValidateDescriptor(desc); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[d]; ok {
		el.Value.(*entry).desc = desc
		return nil
	}

	el := c.order.PushBack(&entry{digest: d, desc: desc})
	c.index[d] = el

	for c.order.Len() > c.size {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*entry).digest)
	}
	return nil
}

func (c *Cache) Clear(ctx context.Context, d digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[d]; ok {
		c.order.Remove(el)
		delete(c.index, d)
	}
	return nil
}

var _ cache.DescriptorCache = (*Cache)(nil)
