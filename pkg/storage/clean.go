package storage

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

// GCOpts configures Clean.
type GCOpts struct {
	DryRun         bool
	MaxConcurrency int
}

// GCStats reports what Clean found and removed.
type GCStats struct {
	ObjectsMarked    int
	PayloadsMarked   int
	ObjectsDeleted   int
	PayloadsDeleted  int
	MarkDuration     time.Duration
	SweepDuration    time.Duration
}

// Clean computes the reachable closure from every tag head in r (platform
// -> layers -> manifests -> trees -> blobs -> payloads) and removes every
// object and payload not in that closure. A two-phase mark-then-sweep,
// grounded on the teacher's garbagecollect.go: list every candidate before
// deleting any of them, so a failure partway through sweep never corrupts
// the mark. As in the teacher, safety against concurrent writers during
// the sweep is the caller's responsibility.
func Clean(ctx context.Context, r *Repository, opts GCOpts) (GCStats, error) {
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = 4
	}
	ctx = dcontext.WithRepositoryRoot(ctx, r.Root)
	logger := dcontext.GetLogger(ctx, dcontext.RepositoryRootKey)
	var stats GCStats

	markStart := time.Now()
	marked, markedPayloads, err := markReachable(ctx, r, opts)
	if err != nil {
		return stats, err
	}
	stats.MarkDuration = time.Since(markStart)
	stats.ObjectsMarked = len(marked)
	stats.PayloadsMarked = len(markedPayloads)
	logger.Infof("storage: clean marked %d objects, %d payloads", len(marked), len(markedPayloads))

	sweepStart := time.Now()

	var staleObjects []digest.Digest
	if err := r.db.IterDigests(ctx, func(d digest.Digest) error {
		if !marked[d] {
			staleObjects = append(staleObjects, d)
		}
		return nil
	}); err != nil {
		return stats, err
	}

	var stalePayloads []digest.Digest
	if err := r.payloads.IterPayloadDigests(ctx, func(d digest.Digest) error {
		if !markedPayloads[d] {
			stalePayloads = append(stalePayloads, d)
		}
		return nil
	}); err != nil {
		return stats, err
	}

	if !opts.DryRun {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.MaxConcurrency)
		for _, d := range staleObjects {
			d := d
			g.Go(func() error { return r.db.driver.Delete(gctx, objectPath(d)) })
		}
		for _, d := range stalePayloads {
			d := d
			g.Go(func() error { return r.payloads.driver.Delete(gctx, payloadPath(d)) })
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	stats.ObjectsDeleted = len(staleObjects)
	stats.PayloadsDeleted = len(stalePayloads)
	stats.SweepDuration = time.Since(sweepStart)
	logger.Infof("storage: clean removed %d objects, %d payloads (dry_run=%v)", stats.ObjectsDeleted, stats.PayloadsDeleted, opts.DryRun)

	if err := r.listener.Cleaned(r.Root, stats.ObjectsDeleted+stats.PayloadsDeleted); err != nil {
		logger.Warnf("storage: notify clean: %v", err)
	}
	return stats, nil
}

func markReachable(ctx context.Context, r *Repository, opts GCOpts) (map[digest.Digest]bool, map[digest.Digest]bool, error) {
	heads, err := tagHeads(ctx, r.tags)
	if err != nil {
		return nil, nil, err
	}

	objects := make(map[digest.Digest]bool)
	payloads := make(map[digest.Digest]bool)
	for _, head := range heads {
		if err := markObject(ctx, r.db, head, objects, payloads); err != nil {
			if _, ok := err.(graph.UnknownObjectError); ok {
				continue
			}
			return nil, nil, err
		}
	}
	return objects, payloads, nil
}

func tagHeads(ctx context.Context, ts *TagStore) ([]digest.Digest, error) {
	names, err := ts.LsTags(ctx, "")
	if err != nil {
		return nil, err
	}
	var heads []digest.Digest
	for _, name := range names {
		spec, err := ParseTagSpec(name)
		if err != nil {
			continue
		}
		tag, err := ts.ResolveTag(ctx, spec)
		if err != nil {
			continue
		}
		heads = append(heads, tag.Target)
	}
	return heads, nil
}

func markObject(ctx context.Context, db *Database, d digest.Digest, objects, payloads map[digest.Digest]bool) error {
	if objects[d] {
		return nil
	}
	objects[d] = true

	obj, err := db.ReadObject(ctx, d)
	if err != nil {
		return err
	}

	switch o := obj.(type) {
	case graph.Platform:
		for _, layerDigest := range o.Stack {
			if err := markObject(ctx, db, layerDigest, objects, payloads); err != nil {
				return err
			}
		}
	case graph.Layer:
		if err := markObject(ctx, db, o.Manifest, objects, payloads); err != nil {
			return err
		}
	case graph.Manifest:
		if err := markObject(ctx, db, o.Root, objects, payloads); err != nil {
			return err
		}
		for _, sub := range o.Subtrees {
			if err := markObject(ctx, db, sub, objects, payloads); err != nil {
				return err
			}
		}
	case graph.Tree:
		for _, entry := range o.Entries {
			switch entry.Kind {
			case graph.EntryTree:
				if err := markObject(ctx, db, entry.Object, objects, payloads); err != nil {
					return err
				}
			case graph.EntryBlob:
				if err := markObject(ctx, db, entry.Object, objects, payloads); err != nil {
					return err
				}
			}
		}
	case graph.Blob:
		payloads[o.Payload] = true
	}
	return nil
}
