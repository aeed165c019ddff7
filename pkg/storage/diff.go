package storage

import (
	"context"
	"path"
	"sort"

	"github.com/spkfs/spfs/pkg/graph"
)

// DiffMode classifies how a path changed between two manifests.
type DiffMode int

const (
	DiffUnchanged DiffMode = iota
	DiffAdded
	DiffRemoved
	DiffChanged
)

func (m DiffMode) String() string {
	switch m {
	case DiffUnchanged:
		return "unchanged"
	case DiffAdded:
		return "added"
	case DiffRemoved:
		return "removed"
	case DiffChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Diff describes the change (if any) at a single path between two
// manifests.
type Diff struct {
	Path string
	Mode DiffMode
}

// ComputeDiff walks a and b's trees in lexicographic path order, producing
// one Diff per path present in either manifest.
func ComputeDiff(ctx context.Context, db *Database, a, b graph.Manifest) ([]Diff, error) {
	aEntries, err := flattenManifest(ctx, db, a)
	if err != nil {
		return nil, err
	}
	bEntries, err := flattenManifest(ctx, db, b)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]bool, len(aEntries)+len(bEntries))
	for p := range aEntries {
		paths[p] = true
	}
	for p := range bEntries {
		paths[p] = true
	}

	ordered := make([]string, 0, len(paths))
	for p := range paths {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	diffs := make([]Diff, 0, len(ordered))
	for _, p := range ordered {
		ae, aok := aEntries[p]
		be, bok := bEntries[p]
		switch {
		case aok && !bok:
			diffs = append(diffs, Diff{Path: p, Mode: DiffRemoved})
		case !aok && bok:
			diffs = append(diffs, Diff{Path: p, Mode: DiffAdded})
		case ae.Kind == be.Kind && ae.Mode == be.Mode && ae.Object == be.Object:
			diffs = append(diffs, Diff{Path: p, Mode: DiffUnchanged})
		default:
			diffs = append(diffs, Diff{Path: p, Mode: DiffChanged})
		}
	}
	return diffs, nil
}

// DiffsEqual reports whether two Diff sequences describe content-equivalent
// manifests: equal modulo entries that are all DiffUnchanged carry no
// information, so two all-unchanged diffs of different length are still
// considered equal.
func DiffsEqual(a, b []Diff) bool {
	af := filterChanged(a)
	bf := filterChanged(b)
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i] != bf[i] {
			return false
		}
	}
	return true
}

func filterChanged(diffs []Diff) []Diff {
	out := make([]Diff, 0, len(diffs))
	for _, d := range diffs {
		if d.Mode != DiffUnchanged {
			out = append(out, d)
		}
	}
	return out
}

// flattenManifest walks a manifest's tree into a flat path -> Entry map,
// using "/"-joined paths rooted at the manifest's root directory.
func flattenManifest(ctx context.Context, db *Database, m graph.Manifest) (map[string]graph.Entry, error) {
	out := make(map[string]graph.Entry)
	root, err := readTreeObj(ctx, db, m.Root)
	if err != nil {
		return nil, err
	}
	if err := flattenTree(ctx, db, root, "/", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenTree(ctx context.Context, db *Database, tree graph.Tree, prefix string, out map[string]graph.Entry) error {
	for _, e := range tree.Entries {
		p := path.Join(prefix, e.Name)
		out[p] = e
		if e.Kind == graph.EntryTree {
			sub, err := readTreeObj(ctx, db, e.Object)
			if err != nil {
				return err
			}
			if err := flattenTree(ctx, db, sub, p, out); err != nil {
				return err
			}
		}
	}
	return nil
}
