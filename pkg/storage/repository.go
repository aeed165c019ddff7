package storage

import (
	"context"
	"time"

	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/cache"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
	"github.com/spkfs/spfs/pkg/metrics"
	"github.com/spkfs/spfs/pkg/notify"
	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

// Repository bundles one Database, PayloadStore and TagStore over a shared
// driver, plus the optional notification/metrics hooks every operation
// goes through. Grounded on the teacher's registry.repository facade,
// which bundles a manifest service, blob store and tag service the same
// way behind functional-option construction.
type Repository struct {
	Root string

	db        *Database
	payloads  *PayloadStore
	tags      *TagStore
	committer *Committer
	renderer  *Renderer

	listener notify.Listener
}

// Option configures a Repository at construction time.
type Option func(*Repository)

// WithListener attaches a notify.Listener that is called after every
// committing/tagging/cleaning operation.
func WithListener(l notify.Listener) Option {
	return func(r *Repository) { r.listener = l }
}

// WithDescriptorCache attaches an optional object descriptor cache
// (pkg/cache) in front of the repository's Database.
func WithDescriptorCache(c cache.DescriptorCache) Option {
	return func(r *Repository) { r.db.SetDescriptorCache(c) }
}

// NewRepository constructs a Repository named root, backed by driver d.
func NewRepository(root string, d storagedriver.StorageDriver, opts ...Option) *Repository {
	db := NewDatabase(d)
	payloads := NewPayloadStore(d)
	r := &Repository{
		Root:      root,
		db:        db,
		payloads:  payloads,
		tags:      NewTagStore(d),
		committer: &Committer{Database: db, PayloadStore: payloads},
		renderer:  &Renderer{Database: db, PayloadStore: payloads},
		listener:  notify.NilListener,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Database returns the repository's object database.
func (r *Repository) Database() *Database { return r.db }

// Payloads returns the repository's payload store.
func (r *Repository) Payloads() *PayloadStore { return r.payloads }

// Tags returns the repository's tag store.
func (r *Repository) Tags() *TagStore { return r.tags }

// HasRef reports whether ref resolves to an object (digest or tag).
func (r *Repository) HasRef(ctx context.Context, ref string) (bool, error) {
	_, err := ReadRef(ctx, r.db, r.tags, ref)
	if err == nil {
		return true, nil
	}
	switch err.(type) {
	case graph.UnknownReferenceError, graph.AmbiguousReferenceError, UnknownTagError, InvalidRefError:
		return false, nil
	default:
		return false, err
	}
}

// ReadRef resolves ref to a digest, trying digest-prefix expansion first
// and falling back to tag resolution.
func (r *Repository) ReadRef(ctx context.Context, ref string) (digest.Digest, error) {
	return ReadRef(ctx, r.db, r.tags, ref)
}

// FindAliases returns every tag name whose head currently points at d.
func (r *Repository) FindAliases(ctx context.Context, d digest.Digest) ([]string, error) {
	return r.tags.FindTags(ctx, d)
}

// PushTag appends a new tag record pointing target under name, notifying
// any configured listener. The acting user is taken from ctx (see
// dcontext.WithUser), falling back to the OS user running the process.
func (r *Repository) PushTag(ctx context.Context, name string, target digest.Digest) (Tag, error) {
	ctx = dcontext.WithRepositoryRoot(ctx, r.Root)
	user := dcontext.GetUser(ctx)
	tag, err := r.tags.PushTag(ctx, name, target, user)
	if err != nil {
		return Tag{}, err
	}
	metrics.IncTagPushes()
	if err := r.listener.TagPushed(r.Root, name, target); err != nil {
		dcontext.GetLogger(ctx, dcontext.RepositoryRootKey).Warnf("storage: notify push_tag %s: %v", name, err)
	}
	return tag, nil
}

// CommitDir commits path as a Manifest, notifying any configured listener.
func (r *Repository) CommitDir(ctx context.Context, path string) (graph.Manifest, error) {
	ctx = dcontext.WithRepositoryRoot(ctx, r.Root)
	start := time.Now()
	manifest, err := r.committer.CommitDir(ctx, path)
	if err != nil {
		return graph.Manifest{}, err
	}
	d, err := graph.DigestObject(manifest)
	if err != nil {
		return graph.Manifest{}, err
	}
	metrics.IncObjectWrites()
	metrics.ObservePayloadWrite("commit", time.Since(start))
	if err := r.listener.Committed(r.Root, d, 0); err != nil {
		dcontext.GetLogger(ctx, dcontext.RepositoryRootKey).Warnf("storage: notify commit %s: %v", d, err)
	}
	return manifest, nil
}

// CommitLayer commits path as a Manifest the same way CommitDir does, but
// additionally rejects the commit with NothingToCommitError if parent is
// non-nil and the resulting manifest is diff-equivalent to it - this keeps
// layer stacks from accumulating no-op layers when nothing under path
// changed since parent was committed.
func (r *Repository) CommitLayer(ctx context.Context, path string, parent *graph.Manifest) (graph.Manifest, error) {
	ctx = dcontext.WithRepositoryRoot(ctx, r.Root)
	manifest, err := r.committer.CommitDir(ctx, path)
	if err != nil {
		return graph.Manifest{}, err
	}
	if parent != nil {
		diffs, err := ComputeDiff(ctx, r.db, *parent, manifest)
		if err != nil {
			return graph.Manifest{}, err
		}
		if len(filterChanged(diffs)) == 0 {
			return graph.Manifest{}, NothingToCommitError{Path: path}
		}
	}
	d, err := graph.DigestObject(manifest)
	if err != nil {
		return graph.Manifest{}, err
	}
	metrics.IncObjectWrites()
	if err := r.listener.Committed(r.Root, d, 0); err != nil {
		dcontext.GetLogger(ctx, dcontext.RepositoryRootKey).Warnf("storage: notify commit %s: %v", d, err)
	}
	return manifest, nil
}

// RenderManifest materializes manifest's tree under targetPath.
func (r *Repository) RenderManifest(ctx context.Context, manifest graph.Manifest, targetPath string) error {
	ctx = dcontext.WithRepositoryRoot(ctx, r.Root)
	return r.renderer.RenderManifest(ctx, manifest, targetPath)
}

// IterManifests calls f once for every Manifest object in the database.
func (r *Repository) IterManifests(ctx context.Context, f func(digest.Digest, graph.Manifest) error) error {
	return r.iterKind(ctx, graph.KindManifest, func(d digest.Digest, obj graph.Object) error {
		return f(d, obj.(graph.Manifest))
	})
}

// IterLayers calls f once for every Layer object in the database.
func (r *Repository) IterLayers(ctx context.Context, f func(digest.Digest, graph.Layer) error) error {
	return r.iterKind(ctx, graph.KindLayer, func(d digest.Digest, obj graph.Object) error {
		return f(d, obj.(graph.Layer))
	})
}

// IterPlatforms calls f once for every Platform object in the database.
func (r *Repository) IterPlatforms(ctx context.Context, f func(digest.Digest, graph.Platform) error) error {
	return r.iterKind(ctx, graph.KindPlatform, func(d digest.Digest, obj graph.Object) error {
		return f(d, obj.(graph.Platform))
	})
}

func (r *Repository) iterKind(ctx context.Context, kind graph.ObjectKind, f func(digest.Digest, graph.Object) error) error {
	return r.db.IterDigests(ctx, func(d digest.Digest) error {
		obj, err := r.db.ReadObject(ctx, d)
		if err != nil {
			return err
		}
		if obj.Kind() != kind {
			return nil
		}
		return f(d, obj)
	})
}
