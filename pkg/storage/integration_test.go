package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
	"github.com/spkfs/spfs/pkg/storage/driver/inmemory"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	return NewRepository("test", inmemory.New())
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCommitDirDeterministic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":       "hello",
		"dir/b.txt":   "world",
		"dir/c/d.txt": "nested",
	})

	m1, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	if m1.Root != m2.Root {
		t.Fatalf("expected deterministic root digest, got %s and %s", m1.Root, m2.Root)
	}
}

func TestCommitAndRenderRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":     "hello",
		"dir/b.txt": "world",
	})

	manifest, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	if err := repo.RenderManifest(ctx, manifest, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
	got2, err := os.ReadFile(filepath.Join(dst, "dir", "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != "world" {
		t.Fatalf("got %q", got2)
	}
}

func TestCommitRegularFileIsSupported(t *testing.T) {
	// A plain temp dir holding only a regular file commits without an
	// UnsupportedFileError. The error path for device files, sockets or
	// fifos is not exercised here.
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})

	if _, err := repo.CommitDir(ctx, src); err != nil {
		t.Fatal(err)
	}
}

func TestPushTagAndReadRef(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "v1"})
	manifest, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	layer := graph.Layer{Manifest: mustDigest(t, manifest)}
	layerDigest, err := repo.db.WriteObject(ctx, layer)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.PushTag(ctx, "myapp", layerDigest); err != nil {
		t.Fatal(err)
	}

	resolved, err := repo.ReadRef(ctx, "myapp")
	if err != nil {
		t.Fatal(err)
	}
	if resolved != layerDigest {
		t.Fatalf("expected %s, got %s", layerDigest, resolved)
	}

	ok, err := repo.HasRef(ctx, "myapp")
	if err != nil || !ok {
		t.Fatalf("expected HasRef true, got %v, %v", ok, err)
	}

	ok, err = repo.HasRef(ctx, "nope")
	if err != nil || ok {
		t.Fatalf("expected HasRef false, got %v, %v", ok, err)
	}
}

func TestResolveStackToLayersFlattensPlatform(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "1"})
	m, _ := repo.CommitDir(ctx, src)
	layer1 := graph.Layer{Manifest: mustDigest(t, m)}
	l1d, _ := repo.db.WriteObject(ctx, layer1)

	src2 := t.TempDir()
	writeTree(t, src2, map[string]string{"b.txt": "2"})
	m2, _ := repo.CommitDir(ctx, src2)
	layer2 := graph.Layer{Manifest: mustDigest(t, m2)}
	l2d, _ := repo.db.WriteObject(ctx, layer2)

	platform := graph.Platform{Stack: []digest.Digest{l1d, l2d}}
	pd, err := repo.db.WriteObject(ctx, platform)
	if err != nil {
		t.Fatal(err)
	}
	repo.PushTag(ctx, "plat", pd)

	layers, err := ResolveStackToLayers(ctx, repo.db, repo.tags, []string{"plat"})
	if err != nil {
		t.Fatal(err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 flattened layers, got %d", len(layers))
	}
}

func TestComputeDiffDetectsChanges(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	srcA := t.TempDir()
	writeTree(t, srcA, map[string]string{"a.txt": "1", "b.txt": "same"})
	mA, _ := repo.CommitDir(ctx, srcA)

	srcB := t.TempDir()
	writeTree(t, srcB, map[string]string{"a.txt": "2", "b.txt": "same", "c.txt": "new"})
	mB, _ := repo.CommitDir(ctx, srcB)

	diffs, err := ComputeDiff(ctx, repo.db, mA, mB)
	if err != nil {
		t.Fatal(err)
	}

	byPath := make(map[string]DiffMode)
	for _, d := range diffs {
		byPath[d.Path] = d.Mode
	}
	if byPath["/a.txt"] != DiffChanged {
		t.Fatalf("expected a.txt changed, got %v", byPath["/a.txt"])
	}
	if byPath["/b.txt"] != DiffUnchanged {
		t.Fatalf("expected b.txt unchanged, got %v", byPath["/b.txt"])
	}
	if byPath["/c.txt"] != DiffAdded {
		t.Fatalf("expected c.txt added, got %v", byPath["/c.txt"])
	}
}

func TestCleanRemovesUnreachableObjects(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"keep.txt": "kept"})
	keptManifest, _ := repo.CommitDir(ctx, src)
	keptLayer := graph.Layer{Manifest: mustDigest(t, keptManifest)}
	keptLayerDigest, _ := repo.db.WriteObject(ctx, keptLayer)
	repo.PushTag(ctx, "kept", keptLayerDigest)

	orphanSrc := t.TempDir()
	writeTree(t, orphanSrc, map[string]string{"orphan.txt": "gone"})
	orphanManifest, _ := repo.CommitDir(ctx, orphanSrc)
	orphanDigest := mustDigest(t, orphanManifest)
	if _, err := repo.db.WriteObject(ctx, graph.Layer{Manifest: orphanDigest}); err != nil {
		t.Fatal(err)
	}

	stats, err := Clean(ctx, repo, GCOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.ObjectsDeleted == 0 {
		t.Fatal("expected at least one unreachable object deleted")
	}

	if ok, _ := repo.db.HasObject(ctx, keptLayerDigest); !ok {
		t.Fatal("kept layer should still be present")
	}
}

func TestSyncRefCopiesClosure(t *testing.T) {
	ctx := context.Background()
	src := newTestRepository(t)
	dst := newTestRepository(t)

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello"})
	manifest, _ := src.CommitDir(ctx, dir)
	layer := graph.Layer{Manifest: mustDigest(t, manifest)}
	layerDigest, _ := src.db.WriteObject(ctx, layer)
	src.PushTag(ctx, "app", layerDigest)

	if err := SyncRef(ctx, "app", src, dst); err != nil {
		t.Fatal(err)
	}

	if ok, err := dst.db.HasObject(ctx, layerDigest); err != nil || !ok {
		t.Fatalf("expected layer copied, got ok=%v err=%v", ok, err)
	}
	resolved, err := dst.ReadRef(ctx, "app")
	if err != nil || resolved != layerDigest {
		t.Fatalf("expected resolved ref %s, got %s, err=%v", layerDigest, resolved, err)
	}

	// idempotent re-sync
	if err := SyncRef(ctx, "app", src, dst); err != nil {
		t.Fatal(err)
	}
}

func TestCleanPreservesCommittedPayload(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "payload contents"})
	manifest, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}
	layer := graph.Layer{Manifest: mustDigest(t, manifest)}
	layerDigest, err := repo.db.WriteObject(ctx, layer)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.PushTag(ctx, "app", layerDigest); err != nil {
		t.Fatal(err)
	}

	payloadDigest := digest.FromBytes([]byte("payload contents"))
	if ok, err := repo.payloads.HasPayload(ctx, payloadDigest); err != nil || !ok {
		t.Fatalf("expected payload present before clean, ok=%v err=%v", ok, err)
	}

	if _, err := Clean(ctx, repo, GCOpts{}); err != nil {
		t.Fatal(err)
	}

	if ok, err := repo.payloads.HasPayload(ctx, payloadDigest); err != nil || !ok {
		t.Fatalf("expected committed file's payload to survive clean, ok=%v err=%v", ok, err)
	}

	dst := t.TempDir()
	if err := repo.RenderManifest(ctx, manifest, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload contents" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderManifestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	repo.renderer.CacheDir = t.TempDir()

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello"})
	manifest, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	if err := repo.RenderManifest(ctx, manifest, dst); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dst, "a.txt")
	if err := os.Chmod(target, 0444); err != nil {
		t.Fatal(err)
	}

	// A second render over the same, now read-only, target must not fail
	// with EACCES and must produce byte-identical content.
	if err := repo.RenderManifest(ctx, manifest, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestCommitLayerRejectsEmptyDiff(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "v1"})
	parent, err := repo.CommitDir(ctx, src)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.CommitLayer(ctx, src, &parent); err == nil {
		t.Fatal("expected NothingToCommitError for an unchanged directory")
	} else if _, ok := err.(NothingToCommitError); !ok {
		t.Fatalf("expected NothingToCommitError, got %T: %v", err, err)
	}

	writeTree(t, src, map[string]string{"a.txt": "v2"})
	if _, err := repo.CommitLayer(ctx, src, &parent); err != nil {
		t.Fatalf("expected changed directory to commit, got %v", err)
	}
}

func mustDigest(t *testing.T, m graph.Manifest) digest.Digest {
	t.Helper()
	d, err := graph.DigestObject(m)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
