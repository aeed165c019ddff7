package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
)

// Renderer materializes a Manifest's filesystem tree onto local disk.
// Unlike Database/PayloadStore/TagStore, rendering always writes through
// the real os package rather than a StorageDriver: the whole point is to
// produce ordinary files other processes can exec/open, which only makes
// sense against the local filesystem. For the same reason its render cache
// is a plain local directory, keyed by manifest digest, rather than
// anything routed through a StorageDriver.
type Renderer struct {
	Database     *Database
	PayloadStore *PayloadStore

	// CacheDir holds complete renders of past manifests, named by manifest
	// digest, so that re-rendering the same manifest a second time skips
	// walking trees and re-copying payload content. Defaults to a
	// directory under os.TempDir() if unset.
	CacheDir string
}

const symlinkModeMask = uint32(symlinkModeBit)

func (r *Renderer) cacheDir() string {
	if r.CacheDir != "" {
		return r.CacheDir
	}
	return filepath.Join(os.TempDir(), "spfs-render-cache")
}

// RenderManifest writes manifest's tree under targetPath. Parents are
// created before children, owner-writable at first and set to their entry
// mode once their children exist, so that permission bits restricting write
// access on a parent don't block creation of its own children. A second call for
// the same manifest is served from CacheDir and produces byte-identical
// results, including against a targetPath left over from a previous render
// with read-only files in it.
func (r *Renderer) RenderManifest(ctx context.Context, manifest graph.Manifest, targetPath string) error {
	d, err := graph.DigestObject(manifest)
	if err != nil {
		return err
	}

	cached := filepath.Join(r.cacheDir(), d.Hex())
	if _, err := os.Stat(cached); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := r.renderToCache(ctx, manifest, cached); err != nil {
			return err
		}
	}
	return copyRenderedTree(cached, targetPath)
}

// renderToCache renders manifest into a temporary directory beside cached
// and renames it into place, so a render that fails partway never leaves a
// partial entry for later callers to pick up.
func (r *Renderer) renderToCache(ctx context.Context, manifest graph.Manifest, cached string) error {
	if err := os.MkdirAll(filepath.Dir(cached), 0755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(filepath.Dir(cached), "render-*")
	if err != nil {
		return err
	}

	root, err := r.readTree(ctx, manifest.Root)
	if err != nil {
		os.RemoveAll(tmp)
		return err
	}
	if err := r.renderTree(ctx, root, tmp); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	if err := os.Rename(tmp, cached); err != nil {
		os.RemoveAll(tmp)
		if os.IsExist(err) {
			// Another renderer raced us to the same cache entry; its
			// result is equally valid since it's keyed by content digest.
			return nil
		}
		return err
	}
	return nil
}

func (r *Renderer) readTree(ctx context.Context, d digest.Digest) (graph.Tree, error) {
	obj, err := r.Database.ReadObject(ctx, d)
	if err != nil {
		return graph.Tree{}, err
	}
	tree, ok := obj.(graph.Tree)
	if !ok {
		return graph.Tree{}, fmt.Errorf("storage: object %s is not a tree", d)
	}
	return tree, nil
}

// openBlob resolves entry.Object through the graph.Blob indirection
// (every EntryBlob entry's Object field names a Blob object, not a payload
// digest directly) and opens the payload it names.
func (r *Renderer) openBlob(ctx context.Context, d digest.Digest) (io.ReadCloser, error) {
	obj, err := r.Database.ReadObject(ctx, d)
	if err != nil {
		return nil, err
	}
	blob, ok := obj.(graph.Blob)
	if !ok {
		return nil, fmt.Errorf("storage: object %s is not a blob", d)
	}
	return r.PayloadStore.OpenPayload(ctx, blob.Payload)
}

func (r *Renderer) renderTree(ctx context.Context, tree graph.Tree, dirPath string) error {
	for _, entry := range tree.Entries {
		childPath := filepath.Join(dirPath, entry.Name)

		switch entry.Kind {
		case graph.EntryTree:
			mode := os.FileMode(entry.Mode & 0777)
			if err := os.MkdirAll(childPath, mode|0700); err != nil {
				return err
			}
			sub, err := r.readTree(ctx, entry.Object)
			if err != nil {
				return err
			}
			if err := r.renderTree(ctx, sub, childPath); err != nil {
				return err
			}
			if err := os.Chmod(childPath, mode); err != nil {
				return err
			}

		case graph.EntryBlob:
			if entry.Mode&symlinkModeMask != 0 {
				if err := r.renderSymlink(ctx, entry, childPath); err != nil {
					return err
				}
				continue
			}
			if err := r.renderFile(ctx, entry, childPath); err != nil {
				return err
			}

		case graph.EntryMask:
			// A rendered tree is always the result of a single manifest, so
			// masks (which only apply during stack merging) never appear
			// here; resolve.go resolves them away before rendering.
			return fmt.Errorf("storage: cannot render unresolved mask entry %s", entry.Name)
		}
	}
	return nil
}

func (r *Renderer) renderFile(ctx context.Context, entry graph.Entry, path string) error {
	rc, err := r.openBlob(ctx, entry.Object)
	if err != nil {
		return err
	}
	defer rc.Close()

	os.Chmod(path, 0644)
	os.Remove(path)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(entry.Mode&0777))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, rc)
	return err
}

func (r *Renderer) renderSymlink(ctx context.Context, entry graph.Entry, path string) error {
	rc, err := r.openBlob(ctx, entry.Object)
	if err != nil {
		return err
	}
	defer rc.Close()

	target, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	os.Remove(path)
	return os.Symlink(string(target), path)
}

// copyRenderedTree links (or, failing that, copies) src's tree into dst.
// Any pre-existing file at a destination path is chmod'd writable and
// removed first, so linking over a read-only cached render never fails
// with EACCES.
func copyRenderedTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(linkTarget, target)
		default:
			return linkOrCopyFile(path, target, info.Mode())
		}
	})
}

func linkOrCopyFile(src, dst string, mode os.FileMode) error {
	os.Chmod(dst, 0644)
	os.Remove(dst)

	if err := os.Link(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Chmod(mode)
}
