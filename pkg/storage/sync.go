package storage

import (
	"context"
	"io"

	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

// SyncRef computes the closure of ref in src, copies any objects and
// payloads missing from dst, then advances ref's tag in dst. Idempotent:
// re-running against an already-synced ref copies nothing further.
func SyncRef(ctx context.Context, ref string, src, dst *Repository) error {
	logger := dcontext.GetLogger(ctx)

	head, err := src.ReadRef(ctx, ref)
	if err != nil {
		return err
	}

	objects := make(map[digest.Digest]bool)
	payloads := make(map[digest.Digest]bool)
	if err := markObject(ctx, src.db, head, objects, payloads); err != nil {
		return err
	}

	copied := 0
	for d := range objects {
		if ok, err := dst.db.HasObject(ctx, d); err != nil {
			return err
		} else if ok {
			continue
		}
		obj, err := src.db.ReadObject(ctx, d)
		if err != nil {
			return err
		}
		if _, err := dst.db.WriteObject(ctx, obj); err != nil {
			return err
		}
		copied++
	}

	for d := range payloads {
		if ok, err := dst.payloads.HasPayload(ctx, d); err != nil {
			return err
		} else if ok {
			continue
		}
		if err := copyPayload(ctx, src.payloads, dst.payloads, d); err != nil {
			return err
		}
		copied++
	}

	spec, err := ParseTagSpec(ref)
	if err != nil {
		return InvalidRefError{Ref: ref, Reason: err.Error()}
	}
	if _, err := dst.PushTag(ctx, spec.Name, head); err != nil {
		return err
	}

	logger.Infof("storage: synced %s (%d objects/payloads copied)", ref, copied)
	return nil
}

func copyPayload(ctx context.Context, src, dst *PayloadStore, d digest.Digest) error {
	rc, err := src.OpenPayload(ctx, d)
	if err != nil {
		return err
	}
	defer rc.Close()

	gotDigest, _, err := dst.WritePayload(ctx, io.Reader(rc))
	if err != nil {
		return err
	}
	if gotDigest != d {
		return graph.UnknownReferenceError{Ref: d.String()}
	}
	return nil
}
