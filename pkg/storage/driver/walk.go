package driver

import (
	"context"
	"path"
	"sort"
)

// WalkFallback implements Walk for drivers that only provide List/Stat, by
// recursively listing directories depth-first. Adapted from the teacher's
// driver.WalkFallback, simplified: SPFS repositories are local and modest
// in size, so the resumable "start after hint" optimization the teacher
// needs for paginated cloud listings is not carried here.
func WalkFallback(ctx context.Context, d StorageDriver, from string, f WalkFn) error {
	children, err := d.List(ctx, from)
	if err != nil {
		if _, ok := err.(PathNotFoundError); ok {
			return nil
		}
		return err
	}
	sort.Strings(children)

	info, err := d.Stat(ctx, from)
	if err == nil {
		if werr := f(info); werr != nil {
			if werr == ErrSkipDir {
				return nil
			}
			return werr
		}
	}

	for _, child := range children {
		childInfo, err := d.Stat(ctx, child)
		if err != nil {
			return err
		}
		if childInfo.IsDir() {
			if err := WalkFallback(ctx, d, child, f); err != nil {
				return err
			}
			continue
		}
		if err := f(childInfo); err != nil {
			if err == ErrSkipDir {
				continue
			}
			return err
		}
	}
	return nil
}

// joinClean is path.Join followed by path.Clean; it does not add a
// leading slash.
func joinClean(elem ...string) string {
	return path.Clean(path.Join(elem...))
}
