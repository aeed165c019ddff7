package storage

import (
	"context"
	"testing"

	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
	"github.com/spkfs/spfs/pkg/storage/driver/inmemory"
)

func newTestDatabase() *Database {
	return NewDatabase(inmemory.New())
}

func TestWriteReadObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	blob := graph.Blob{Payload: digest.FromBytes([]byte("payload")), Size: 7}
	d, err := db.WriteObject(ctx, blob)
	if err != nil {
		t.Fatal(err)
	}

	obj, err := db.ReadObject(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := obj.(graph.Blob)
	if !ok {
		t.Fatalf("expected Blob, got %T", obj)
	}
	if got.Size != 7 || got.Payload != blob.Payload {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestWriteObjectIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	blob := graph.Blob{Payload: digest.FromBytes([]byte("x")), Size: 1}
	d1, err := db.WriteObject(ctx, blob)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := db.WriteObject(ctx, blob)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatalf("expected same digest, got %s and %s", d1, d2)
	}
}

func TestReadUnknownObject(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	_, err := db.ReadObject(ctx, digest.FromBytes([]byte("nope")))
	if _, ok := err.(graph.UnknownObjectError); !ok {
		t.Fatalf("expected UnknownObjectError, got %v", err)
	}
}

func TestHasObject(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	blob := graph.Blob{Payload: digest.FromBytes([]byte("y")), Size: 1}
	d, _ := db.WriteObject(ctx, blob)

	if ok, err := db.HasObject(ctx, d); err != nil || !ok {
		t.Fatalf("expected present, got ok=%v err=%v", ok, err)
	}
	if ok, err := db.HasObject(ctx, digest.FromBytes([]byte("absent"))); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}
}

func TestResolveFullDigestUnique(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	blob := graph.Blob{Payload: digest.FromBytes([]byte("z")), Size: 1}
	d, _ := db.WriteObject(ctx, blob)

	resolved, err := db.ResolveFullDigest(ctx, d.Hex()[:8])
	if err != nil {
		t.Fatal(err)
	}
	if resolved != d {
		t.Fatalf("expected %s, got %s", d, resolved)
	}
}

func TestResolveFullDigestUnknown(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	_, err := db.ResolveFullDigest(ctx, "deadbeef")
	if _, ok := err.(graph.UnknownReferenceError); !ok {
		t.Fatalf("expected UnknownReferenceError, got %v", err)
	}
}

func TestIterDigests(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase()

	var want []digest.Digest
	for i := 0; i < 5; i++ {
		d, err := db.WriteObject(ctx, graph.Blob{Payload: digest.FromBytes([]byte{byte(i)}), Size: int64(i)})
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, d)
	}

	seen := make(map[digest.Digest]bool)
	if err := db.IterDigests(ctx, func(d digest.Digest) error {
		seen[d] = true
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	for _, d := range want {
		if !seen[d] {
			t.Fatalf("expected to see digest %s", d)
		}
	}
}
