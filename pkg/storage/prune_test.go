package storage

import (
	"context"
	"testing"
	"time"

	"github.com/spkfs/spfs/pkg/digest"
)

// seedTagStream writes records directly, bypassing PushTag, so tests can
// control each record's timestamp precisely.
func seedTagStream(t *testing.T, ts *TagStore, name string, ages []time.Duration) []Tag {
	t.Helper()
	now := time.Now()
	parent := digest.NULL
	records := make([]Tag, len(ages))
	for i, age := range ages {
		target := digest.FromBytes([]byte(name + time.Duration(i).String()))
		records[i] = Tag{
			Name:      name,
			Parent:    parent,
			Target:    target,
			User:      "seed",
			Timestamp: now.Add(-age).Unix(),
		}
		parent = target
	}
	p, err := tagPath(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.driver.PutContent(context.Background(), p, encodeTagRecords(records)); err != nil {
		t.Fatal(err)
	}
	return records
}

func TestPrunePruneIfOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	seeded := seedTagStream(t, repo.tags, "app", []time.Duration{
		48 * time.Hour, // old, candidate
		time.Hour,      // recent, kept
	})

	stats, err := Prune(ctx, repo, PruneParameters{PruneIfOlderThan: 24 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if stats.RecordsRemoved != 1 {
		t.Fatalf("expected 1 record removed, got %d", stats.RecordsRemoved)
	}

	remaining, err := repo.tags.readRecords(ctx, mustTagPath("app"))
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining record, got %d", len(remaining))
	}
	if remaining[0].Target != seeded[1].Target {
		t.Fatalf("expected the recent record to survive, got target %s", remaining[0].Target)
	}
}

func TestPruneKeepIfNewerThanOverridesOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	seedTagStream(t, repo.tags, "app", []time.Duration{
		2 * time.Minute, // older than PruneIfOlderThan but younger than KeepIfNewerThan
	})

	stats, err := Prune(ctx, repo, PruneParameters{
		PruneIfOlderThan: time.Minute,
		KeepIfNewerThan:  time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.RecordsRemoved != 0 {
		t.Fatalf("expected KeepIfNewerThan to protect the record, removed %d", stats.RecordsRemoved)
	}
}

func TestPruneKeepIfLessThanNProtectsWholeStream(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	seedTagStream(t, repo.tags, "app", []time.Duration{
		1000 * time.Hour,
		2000 * time.Hour,
	})

	stats, err := Prune(ctx, repo, PruneParameters{
		PruneIfOlderThan: time.Hour,
		KeepIfLessThanN:  5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.RecordsRemoved != 0 {
		t.Fatalf("expected KeepIfLessThanN to protect the whole stream, removed %d", stats.RecordsRemoved)
	}
}

func TestPrunePruneIfMoreThanNKeepsNewest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	seedTagStream(t, repo.tags, "app", []time.Duration{
		5 * time.Hour,
		4 * time.Hour,
		3 * time.Hour,
		2 * time.Hour,
		1 * time.Hour,
	})

	stats, err := Prune(ctx, repo, PruneParameters{PruneIfMoreThanN: 2})
	if err != nil {
		t.Fatal(err)
	}
	if stats.RecordsRemoved != 3 {
		t.Fatalf("expected 3 records removed, got %d", stats.RecordsRemoved)
	}

	remaining, err := repo.tags.readRecords(ctx, mustTagPath("app"))
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining records, got %d", len(remaining))
	}
}

func TestPruneRemovesWholeStreamWhenAllQualify(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	seedTagStream(t, repo.tags, "app", []time.Duration{
		48 * time.Hour,
		72 * time.Hour,
	})

	stats, err := Prune(ctx, repo, PruneParameters{PruneIfOlderThan: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if stats.RecordsRemoved != 2 {
		t.Fatalf("expected both records removed, got %d", stats.RecordsRemoved)
	}

	names, err := repo.tags.LsTags(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range names {
		if n == "app" {
			t.Fatal("expected stream to be removed entirely, not left empty")
		}
	}
}
