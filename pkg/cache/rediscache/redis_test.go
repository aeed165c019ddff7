package rediscache

import (
	"context"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/spkfs/spfs/pkg/cache"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

var redisAddr string

func init() {
	flag.StringVar(&redisAddr, "test.pkg.cache.redis.addr", "", "configure the address of a test instance of redis")
}

func TestRedisDescriptorCache(t *testing.T) {
	if redisAddr == "" {
		redisAddr = os.Getenv("TEST_SPFS_CACHE_REDIS_ADDR")
	}
	if redisAddr == "" {
		t.Skip("please set -test.pkg.cache.redis.addr to test DescriptorCache against redis")
	}

	pool := &redis.Pool{
		MaxIdle:     2,
		IdleTimeout: 30 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", redisAddr)
		},
	}
	defer pool.Close()

	c := New(pool)
	ctx := context.Background()
	d := digest.FromBytes([]byte("hello"))

	if _, err := c.Stat(ctx, d); err != cache.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	desc := cache.Descriptor{Kind: graph.KindBlob, Size: 5}
	if err := c.SetDescriptor(ctx, d, desc); err != nil {
		t.Fatal(err)
	}

	got, err := c.Stat(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if got != desc {
		t.Fatalf("got %+v, want %+v", got, desc)
	}

	if err := c.Clear(ctx, d); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Stat(ctx, d); err != cache.ErrNotFound {
		t.Fatal("expected miss after clear")
	}
}
