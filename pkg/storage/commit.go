package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

const symlinkModeBit = 1 << 31

// Committer walks a filesystem tree and writes it into a Database and
// PayloadStore as a content-addressed Manifest, bottom-up: grounded on the
// teacher's layerwriter, which streams file content into the blob store
// while it builds the manifest in the same traversal rather than in two
// passes (see the Open Question decision recorded in DESIGN.md).
type Committer struct {
	Database     *Database
	PayloadStore *PayloadStore
}

// CommitDir commits the directory tree rooted at path, returning its
// Manifest.
func (c *Committer) CommitDir(ctx context.Context, path string) (graph.Manifest, error) {
	var subtrees []digest.Digest
	rootDigest, err := c.commitTree(ctx, path, &subtrees)
	if err != nil {
		return graph.Manifest{}, err
	}

	sort.Slice(subtrees, func(i, j int) bool { return subtrees[i].Hex() < subtrees[j].Hex() })
	manifest := graph.Manifest{Root: rootDigest, Subtrees: subtrees}
	if _, err := c.Database.WriteObject(ctx, manifest); err != nil {
		return graph.Manifest{}, err
	}
	dcontext.GetLogger(ctx, dcontext.RepositoryRootKey).Debugf("storage: committed %s", path)
	return manifest, nil
}

func (c *Committer) commitTree(ctx context.Context, dir string, subtrees *[]digest.Digest) (digest.Digest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("storage: read dir %s: %w", dir, err)
	}

	treeEntries := make([]graph.Entry, 0, len(entries))
	for _, de := range entries {
		childPath := filepath.Join(dir, de.Name())
		info, err := os.Lstat(childPath)
		if err != nil {
			return digest.Digest{}, err
		}

		switch {
		case info.IsDir():
			subDigest, err := c.commitTree(ctx, childPath, subtrees)
			if err != nil {
				return digest.Digest{}, err
			}
			*subtrees = append(*subtrees, subDigest)
			treeEntries = append(treeEntries, graph.Entry{
				Name:   de.Name(),
				Kind:   graph.EntryTree,
				Mode:   uint32(info.Mode().Perm()) | uint32(os.ModeDir),
				Object: subDigest,
			})

		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(childPath)
			if err != nil {
				return digest.Digest{}, err
			}
			payloadDigest, size, err := c.PayloadStore.WritePayload(ctx, strings.NewReader(target))
			if err != nil {
				return digest.Digest{}, err
			}
			blobDigest, err := c.Database.WriteObject(ctx, graph.Blob{Payload: payloadDigest, Size: size})
			if err != nil {
				return digest.Digest{}, err
			}
			treeEntries = append(treeEntries, graph.Entry{
				Name:   de.Name(),
				Kind:   graph.EntryBlob,
				Mode:   uint32(info.Mode().Perm()) | symlinkModeBit,
				Size:   size,
				Object: blobDigest,
			})

		case info.Mode().IsRegular():
			f, err := os.Open(childPath)
			if err != nil {
				return digest.Digest{}, err
			}
			payloadDigest, size, err := c.PayloadStore.WritePayload(ctx, f)
			f.Close()
			if err != nil {
				return digest.Digest{}, err
			}
			blobDigest, err := c.Database.WriteObject(ctx, graph.Blob{Payload: payloadDigest, Size: size})
			if err != nil {
				return digest.Digest{}, err
			}
			treeEntries = append(treeEntries, graph.Entry{
				Name:   de.Name(),
				Kind:   graph.EntryBlob,
				Mode:   uint32(info.Mode().Perm()),
				Size:   size,
				Object: blobDigest,
			})

		default:
			return digest.Digest{}, UnsupportedFileError{Path: childPath}
		}
	}

	tree, err := graph.NewTree(treeEntries)
	if err != nil {
		return digest.Digest{}, err
	}
	return c.Database.WriteObject(ctx, tree)
}
