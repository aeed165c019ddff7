// Package rediscache provides a redis-backed DescriptorCache, grounded on
// the registry's own redis layer-info cache: a hash per digest holding
// the cached fields, looked up and set with HMGET/HMSET.
package rediscache

import (
	"context"

	"github.com/gomodule/redigo/redis"

	"github.com/spkfs/spfs/pkg/cache"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

func descriptorKind(k uint8) graph.ObjectKind {
	return graph.ObjectKind(k)
}

// Cache is a DescriptorCache backed by a redis connection pool.
type Cache struct {
	pool *redis.Pool
}

// New returns a Cache using the given connection pool. The pool is not
// owned by the Cache; callers are responsible for closing it.
func New(pool *redis.Pool) *Cache {
	return &Cache{pool: pool}
}

func (c *Cache) Stat(ctx context.Context, d digest.Digest) (cache.Descriptor, error) {
	conn := c.pool.Get()
	defer conn.Close()

	reply, err := redis.Values(conn.Do("HMGET", descriptorKey(d), "kind", "size"))
	if err != nil {
		return cache.Descriptor{}, err
	}
	if len(reply) < 2 || reply[0] == nil || reply[1] == nil {
		return cache.Descriptor{}, cache.ErrNotFound
	}

	var kind uint8
	var size int64
	if _, err := redis.Scan(reply, &kind, &size); err != nil {
		return cache.Descriptor{}, err
	}
	return cache.Descriptor{Kind: descriptorKind(kind), Size: size}, nil
}

func (c *Cache) SetDescriptor(ctx context.Context, d digest.Digest, desc cache.Descriptor) error {
	if err := cache.ValidateDescriptor(desc); err != nil {
		return err
	}

	conn := c.pool.Get()
	defer conn.Close()

	_, err := conn.Do("HMSET", descriptorKey(d), "kind", uint8(desc.Kind), "size", desc.Size)
	return err
}

func (c *Cache) Clear(ctx context.Context, d digest.Digest) error {
	conn := c.pool.Get()
	defer conn.Close()

	_, err := conn.Do("DEL", descriptorKey(d))
	return err
}

func descriptorKey(d digest.Digest) string {
	return "spfs::descriptors::" + d.String()
}

var _ cache.DescriptorCache = (*Cache)(nil)
