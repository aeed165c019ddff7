// Package storage assembles the content-addressed object database, payload
// store and tag store into a Repository, over a pluggable
// pkg/storage/driver.StorageDriver. Layout and algorithms are grounded on
// the teacher's registry/storage package: blobs/payloads split the same
// way the teacher splits blob data from link metadata, and the tag store's
// append-only, lock-serialized record log mirrors the teacher's approach
// to repository metadata.
package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/spkfs/spfs/pkg/digest"
)

const (
	objectsRoot  = "/objects"
	payloadsRoot = "/payloads"
	tagsRoot     = "/tags"
)

// objectPath returns the storage path for an object keyed by d, splitting
// the first two hex characters into a fan-out directory the way the
// teacher's blob store shards by digest prefix to bound directory sizes.
func objectPath(d digest.Digest) string {
	return shardedPath(objectsRoot, d)
}

func payloadPath(d digest.Digest) string {
	return shardedPath(payloadsRoot, d)
}

func shardedPath(root string, d digest.Digest) string {
	hex := d.Hex()
	return path.Join(root, hex[:2], hex[2:])
}

// objectTempPath returns a scratch path under root/_tmp for staging a
// write before an atomic rename to its final path; a uuid component avoids collisions between
// concurrent writers of different content that happen to race.
func objectTempPath(root, uuid string) string {
	return path.Join(root, "_tmp", uuid)
}

// tagPath maps a slash-separated tag name (e.g. "org/name") to its
// append-only record file.
func tagPath(name string) (string, error) {
	name = strings.Trim(name, "/")
	if name == "" {
		return "", fmt.Errorf("storage: empty tag name")
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("storage: invalid tag name %q", name)
		}
	}
	return path.Join(tagsRoot, name+".tag"), nil
}

// tagNameFromPath reverses tagPath, used when enumerating the tag
// namespace via List/Walk.
func tagNameFromPath(p string) (string, bool) {
	if !strings.HasSuffix(p, ".tag") {
		return "", false
	}
	rel := strings.TrimPrefix(p, tagsRoot+"/")
	if rel == p {
		return "", false
	}
	return strings.TrimSuffix(rel, ".tag"), true
}
