package storage

import (
	"context"
	"time"

	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/digest"
)

// PruneParameters configures Prune's retention policy over a tag stream.
// A zero-valued field disables that criterion.
type PruneParameters struct {
	// PruneIfOlderThan marks a record a removal candidate once it is
	// older than this, relative to the time Prune runs.
	PruneIfOlderThan time.Duration
	// KeepIfNewerThan protects a record from removal while it is younger
	// than this, overriding PruneIfOlderThan and PruneIfMoreThanN.
	KeepIfNewerThan time.Duration
	// PruneIfMoreThanN marks the oldest records a stream carries past this
	// count as removal candidates, keeping the N most recent.
	PruneIfMoreThanN int
	// KeepIfLessThanN protects an entire stream from removal while it
	// holds fewer than N records.
	KeepIfLessThanN int
}

// PruneStats reports what Prune visited and removed.
type PruneStats struct {
	StreamsVisited int
	RecordsRemoved int
}

// Prune walks every tag stream in r and removes the records params selects
// for removal, honoring the invariant that a stream is only left empty if
// every one of its records qualified.
func Prune(ctx context.Context, r *Repository, params PruneParameters) (PruneStats, error) {
	var stats PruneStats
	ctx = dcontext.WithRepositoryRoot(ctx, r.Root)
	logger := dcontext.GetLogger(ctx, dcontext.RepositoryRootKey)

	names, err := r.tags.LsTags(ctx, "")
	if err != nil {
		return stats, err
	}

	now := time.Now()
	for _, name := range names {
		stats.StreamsVisited++

		records, err := r.tags.readRecords(ctx, mustTagPath(name))
		if err != nil {
			return stats, err
		}
		if len(records) == 0 {
			continue
		}

		keep := tagsToKeep(records, now, params)
		removed, err := r.tags.PruneRecords(ctx, name, func(t Tag) bool { return keep[t.Digest()] })
		if err != nil {
			return stats, err
		}
		stats.RecordsRemoved += removed
		if removed > 0 {
			logger.Infof("storage: pruned %d record(s) from tag %s", removed, name)
		}
	}
	return stats, nil
}

// tagsToKeep decides, for every record in a single stream's history, whether
// it survives params. records must be in append order (oldest first), as
// readRecords returns them.
//
// KeepIfLessThanN protects the whole stream outright. Otherwise a record
// becomes a prune candidate if it is older than PruneIfOlderThan, or if it
// falls among the oldest len(records)-PruneIfMoreThanN records; either
// criterion is enough. KeepIfNewerThan then overrides candidacy back to
// false for anything younger than it. The result is the complement of
// candidacy, so if every record ends up a candidate, keep is empty for all
// of them and PruneRecords correctly drops the whole stream - the one case
// the empty-stream invariant permits.
func tagsToKeep(records []Tag, now time.Time, params PruneParameters) map[digest.Digest]bool {
	keep := make(map[digest.Digest]bool, len(records))

	if params.KeepIfLessThanN > 0 && len(records) < params.KeepIfLessThanN {
		for _, r := range records {
			keep[r.Digest()] = true
		}
		return keep
	}

	cutoff := len(records) - params.PruneIfMoreThanN
	for i, r := range records {
		candidate := false
		if params.PruneIfOlderThan > 0 && now.Sub(r.Time()) > params.PruneIfOlderThan {
			candidate = true
		}
		if params.PruneIfMoreThanN > 0 && i < cutoff {
			candidate = true
		}
		if params.KeepIfNewerThan > 0 && now.Sub(r.Time()) < params.KeepIfNewerThan {
			candidate = false
		}
		if !candidate {
			keep[r.Digest()] = true
		}
	}
	return keep
}
