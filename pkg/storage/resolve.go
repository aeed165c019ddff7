package storage

import (
	"context"
	"sort"

	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

// ReadRef resolves ref against db first as a digest or hex prefix, falling
// back to tag resolution against ts, matching the Repository facade's
// read_ref contract (spec §4.8: digest expansion tried before tags).
func ReadRef(ctx context.Context, db *Database, ts *TagStore, ref string) (digest.Digest, error) {
	if d, err := db.ResolveFullDigest(ctx, ref); err == nil {
		return d, nil
	}
	spec, err := ParseTagSpec(ref)
	if err != nil {
		return digest.Digest{}, InvalidRefError{Ref: ref, Reason: err.Error()}
	}
	tag, err := ts.ResolveTag(ctx, spec)
	if err != nil {
		return digest.Digest{}, err
	}
	return tag.Target, nil
}

// ResolveStackToLayers resolves each ref in stack to an object and flattens
// any Platform references into their inner layer stack, in place and
// recursively, preserving order (earlier entries are lower layers).
func ResolveStackToLayers(ctx context.Context, db *Database, ts *TagStore, stack []string) ([]graph.Layer, error) {
	var out []graph.Layer
	for _, ref := range stack {
		layers, err := resolveRefToLayers(ctx, db, ts, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, layers...)
	}
	return out, nil
}

func resolveRefToLayers(ctx context.Context, db *Database, ts *TagStore, ref string) ([]graph.Layer, error) {
	d, err := ReadRef(ctx, db, ts, ref)
	if err != nil {
		return nil, err
	}
	obj, err := db.ReadObject(ctx, d)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case graph.Layer:
		return []graph.Layer{o}, nil
	case graph.Platform:
		var out []graph.Layer
		for _, inner := range o.Stack {
			layers, err := resolveRefToLayers(ctx, db, ts, inner.String())
			if err != nil {
				return nil, err
			}
			out = append(out, layers...)
		}
		return out, nil
	default:
		return nil, InvalidRefError{Ref: ref, Reason: "not a layer or platform"}
	}
}

// ResolveEffectiveManifest folds a layer stack into a single merged
// Manifest via layer_manifests applied left-to-right (see DESIGN.md's
// Open Question decision on associativity): each subsequent layer's tree
// wins over everything resolved so far, except where it masks a path.
func ResolveEffectiveManifest(ctx context.Context, db *Database, layers []graph.Layer) (graph.Manifest, error) {
	if len(layers) == 0 {
		return graph.Manifest{}, InvalidRefError{Ref: "", Reason: "empty layer stack"}
	}

	manifestObj, err := db.ReadObject(ctx, layers[0].Manifest)
	if err != nil {
		return graph.Manifest{}, err
	}
	effective, ok := manifestObj.(graph.Manifest)
	if !ok {
		return graph.Manifest{}, InvalidRefError{Ref: layers[0].Manifest.String(), Reason: "layer points at a non-manifest object"}
	}

	for _, upper := range layers[1:] {
		upperObj, err := db.ReadObject(ctx, upper.Manifest)
		if err != nil {
			return graph.Manifest{}, err
		}
		upperManifest, ok := upperObj.(graph.Manifest)
		if !ok {
			return graph.Manifest{}, InvalidRefError{Ref: upper.Manifest.String(), Reason: "layer points at a non-manifest object"}
		}
		effective, err = mergeManifests(ctx, db, effective, upperManifest)
		if err != nil {
			return graph.Manifest{}, err
		}
	}
	return effective, nil
}

// mergeManifests merges lower and upper: upper's entries win at every
// path, except an EntryMask in upper deletes the corresponding path from
// lower instead of overwriting it. The merged trees are written back to db
// so the result is an ordinary, renderable Manifest.
func mergeManifests(ctx context.Context, db *Database, lower, upper graph.Manifest) (graph.Manifest, error) {
	lowerRoot, err := readTreeObj(ctx, db, lower.Root)
	if err != nil {
		return graph.Manifest{}, err
	}
	upperRoot, err := readTreeObj(ctx, db, upper.Root)
	if err != nil {
		return graph.Manifest{}, err
	}

	var subtrees []digest.Digest
	mergedRoot, err := mergeTrees(ctx, db, lowerRoot, upperRoot, &subtrees)
	if err != nil {
		return graph.Manifest{}, err
	}
	rootDigest, err := db.WriteObject(ctx, mergedRoot)
	if err != nil {
		return graph.Manifest{}, err
	}

	sort.Slice(subtrees, func(i, j int) bool { return subtrees[i].Hex() < subtrees[j].Hex() })
	merged := graph.Manifest{Root: rootDigest, Subtrees: subtrees}
	if _, err := db.WriteObject(ctx, merged); err != nil {
		return graph.Manifest{}, err
	}
	return merged, nil
}

func readTreeObj(ctx context.Context, db *Database, d digest.Digest) (graph.Tree, error) {
	obj, err := db.ReadObject(ctx, d)
	if err != nil {
		return graph.Tree{}, err
	}
	tree, ok := obj.(graph.Tree)
	if !ok {
		return graph.Tree{}, InvalidRefError{Ref: d.String(), Reason: "expected a tree"}
	}
	return tree, nil
}

func mergeTrees(ctx context.Context, db *Database, lower, upper graph.Tree, subtrees *[]digest.Digest) (graph.Tree, error) {
	byName := make(map[string]graph.Entry, len(lower.Entries)+len(upper.Entries))
	for _, e := range lower.Entries {
		byName[e.Name] = e
	}

	for _, ue := range upper.Entries {
		if ue.Kind == graph.EntryMask {
			delete(byName, ue.Name)
			continue
		}
		le, existed := byName[ue.Name]
		if existed && le.Kind == graph.EntryTree && ue.Kind == graph.EntryTree {
			lowerSub, err := readTreeObj(ctx, db, le.Object)
			if err != nil {
				return graph.Tree{}, err
			}
			upperSub, err := readTreeObj(ctx, db, ue.Object)
			if err != nil {
				return graph.Tree{}, err
			}
			mergedSub, err := mergeTrees(ctx, db, lowerSub, upperSub, subtrees)
			if err != nil {
				return graph.Tree{}, err
			}
			mergedDigest, err := db.WriteObject(ctx, mergedSub)
			if err != nil {
				return graph.Tree{}, err
			}
			*subtrees = append(*subtrees, mergedDigest)
			ue.Object = mergedDigest
		}
		byName[ue.Name] = ue
	}

	entries := make([]graph.Entry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	return graph.NewTree(entries)
}
