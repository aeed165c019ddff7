package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spkfs/spfs/internal/dcontext"
	"github.com/spkfs/spfs/pkg/digest"
	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

// tagUserFieldSize is the fixed width reserved for a record's user field;
// longer identities are truncated, shorter ones null-padded, so records
// stay fixed-size and readRecords can keep dividing a stream's length by
// tagRecordSize instead of scanning for delimiters.
const tagUserFieldSize = 32

const tagTimestampFieldSize = 8 // unix seconds, big-endian

const tagRecordSize = 2*digest.Size + tagTimestampFieldSize + tagUserFieldSize

// TagStore holds tag histories as append-only files of fixed-size
// (parent, target, timestamp, user) records, grounded on the teacher's
// approach to small, frequently-updated repository metadata: one record
// per append, no rewriting of prior records except via explicit pruning.
type TagStore struct {
	driver storagedriver.StorageDriver

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewTagStore wraps d as a TagStore.
func NewTagStore(d storagedriver.StorageDriver) *TagStore {
	return &TagStore{driver: d, locks: make(map[string]*sync.Mutex)}
}

func (ts *TagStore) lockFor(name string) *sync.Mutex {
	ts.locksMu.Lock()
	defer ts.locksMu.Unlock()
	l, ok := ts.locks[name]
	if !ok {
		l = &sync.Mutex{}
		ts.locks[name] = l
	}
	return l
}

// PushTag appends a new Tag record to name's stream, whose parent is the
// current head (or digest.NULL for the first record). user is stamped onto
// the record along with the current time.
func (ts *TagStore) PushTag(ctx context.Context, name string, target digest.Digest, user string) (Tag, error) {
	lock := ts.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	p, err := tagPath(name)
	if err != nil {
		return Tag{}, InvalidRefError{Ref: name, Reason: err.Error()}
	}

	records, err := ts.readRecords(ctx, p)
	if err != nil {
		return Tag{}, err
	}

	parent := digest.NULL
	if len(records) > 0 {
		parent = records[len(records)-1].Target
	}

	tag := Tag{Name: name, Parent: parent, Target: target, User: user, Timestamp: time.Now().Unix()}

	w, err := ts.driver.Writer(ctx, p, true)
	if err != nil {
		return Tag{}, fmt.Errorf("storage: open tag stream %s: %w", name, err)
	}
	if _, err := w.Write(encodeTagRecord(tag)); err != nil {
		w.Cancel(ctx)
		return Tag{}, fmt.Errorf("storage: append tag %s: %w", name, err)
	}
	if err := w.Commit(ctx); err != nil {
		return Tag{}, fmt.Errorf("storage: commit tag %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return Tag{}, err
	}

	dcontext.GetLogger(ctx, dcontext.RepositoryRootKey).Debugf("storage: pushed tag %s -> %s (user=%s)", name, target, user)
	return tag, nil
}

// encodeTagRecord renders a Tag as its fixed-size on-disk form: parent
// digest, target digest, big-endian unix timestamp, then the user field
// truncated or null-padded to tagUserFieldSize bytes.
func encodeTagRecord(t Tag) []byte {
	buf := make([]byte, 0, tagRecordSize)
	buf = append(buf, t.Parent[:]...)
	buf = append(buf, t.Target[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.Timestamp))
	user := []byte(t.User)
	if len(user) > tagUserFieldSize {
		user = user[:tagUserFieldSize]
	}
	field := make([]byte, tagUserFieldSize)
	copy(field, user)
	buf = append(buf, field...)
	return buf
}

func encodeTagRecords(records []Tag) []byte {
	buf := make([]byte, 0, len(records)*tagRecordSize)
	for _, r := range records {
		buf = append(buf, encodeTagRecord(r)...)
	}
	return buf
}

// ResolveTag resolves spec against its stream's history.
func (ts *TagStore) ResolveTag(ctx context.Context, spec TagSpec) (Tag, error) {
	p, err := tagPath(spec.Name)
	if err != nil {
		return Tag{}, InvalidRefError{Ref: spec.String(), Reason: err.Error()}
	}
	records, err := ts.readRecords(ctx, p)
	if err != nil {
		return Tag{}, err
	}
	if len(records) == 0 {
		return Tag{}, UnknownTagError{Spec: spec.String()}
	}

	if spec.isHead() {
		return records[len(records)-1], nil
	}
	if n, ok := spec.indexFromHead(); ok {
		idx := len(records) - 1 - n
		if idx < 0 {
			return Tag{}, InvalidRefError{Ref: spec.String(), Reason: "index beyond tag history"}
		}
		return records[idx], nil
	}
	if prefix, ok := spec.digestPrefix(); ok {
		var match *Tag
		for i := range records {
			if strings.HasPrefix(records[i].Digest().Hex(), prefix) {
				if match != nil {
					return Tag{}, InvalidRefError{Ref: spec.String(), Reason: "ambiguous revision prefix"}
				}
				r := records[i]
				match = &r
			}
		}
		if match == nil {
			return Tag{}, UnknownTagError{Spec: spec.String()}
		}
		return *match, nil
	}
	return Tag{}, InvalidRefError{Ref: spec.String(), Reason: "unrecognized version syntax"}
}

// FindTags returns every tag name whose current head points at d.
func (ts *TagStore) FindTags(ctx context.Context, d digest.Digest) ([]string, error) {
	var found []string
	err := ts.forEachTagFile(ctx, func(name string) error {
		records, err := ts.readRecords(ctx, mustTagPath(name))
		if err != nil || len(records) == 0 {
			return nil
		}
		if records[len(records)-1].Target == d {
			found = append(found, name)
		}
		return nil
	})
	sort.Strings(found)
	return found, err
}

// LsTags enumerates tag names under pathPrefix.
func (ts *TagStore) LsTags(ctx context.Context, pathPrefix string) ([]string, error) {
	var names []string
	err := ts.forEachTagFile(ctx, func(name string) error {
		if pathPrefix == "" || strings.HasPrefix(name, pathPrefix) {
			names = append(names, name)
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

// RemoveTagStream deletes a tag's entire history.
func (ts *TagStore) RemoveTagStream(ctx context.Context, name string) error {
	lock := ts.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	p, err := tagPath(name)
	if err != nil {
		return InvalidRefError{Ref: name, Reason: err.Error()}
	}
	if err := ts.driver.Delete(ctx, p); err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return UnknownTagError{Spec: name}
		}
		return err
	}
	return nil
}

// RemoveTag drops one specific record from its stream, rewriting the
// stream without it. Refuses to leave a caller without any trace the
// stream existed; callers that want the whole stream gone should call
// RemoveTagStream instead.
func (ts *TagStore) RemoveTag(ctx context.Context, tag Tag) error {
	lock := ts.lockFor(tag.Name)
	lock.Lock()
	defer lock.Unlock()

	p, err := tagPath(tag.Name)
	if err != nil {
		return InvalidRefError{Ref: tag.Name, Reason: err.Error()}
	}
	records, err := ts.readRecords(ctx, p)
	if err != nil {
		return err
	}

	target := tag.Digest()
	kept := records[:0]
	for _, r := range records {
		if r.Digest() != target {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return UnknownTagError{Spec: tag.Name}
	}

	return ts.driver.PutContent(ctx, p, encodeTagRecords(kept))
}

// PruneRecords rewrites name's stream, keeping only the records for which
// keep returns true. If keep rejects every record the whole stream is
// removed rather than left as an empty file. Returns the number of records
// removed.
func (ts *TagStore) PruneRecords(ctx context.Context, name string, keep func(Tag) bool) (int, error) {
	lock := ts.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	p, err := tagPath(name)
	if err != nil {
		return 0, InvalidRefError{Ref: name, Reason: err.Error()}
	}
	records, err := ts.readRecords(ctx, p)
	if err != nil {
		return 0, err
	}

	var kept []Tag
	for _, r := range records {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if len(kept) == 0 {
		if err := ts.driver.Delete(ctx, p); err != nil {
			if _, ok := err.(storagedriver.PathNotFoundError); !ok {
				return 0, err
			}
		}
		return removed, nil
	}

	if err := ts.driver.PutContent(ctx, p, encodeTagRecords(kept)); err != nil {
		return 0, err
	}
	return removed, nil
}

func (ts *TagStore) readRecords(ctx context.Context, p string) ([]Tag, error) {
	raw, err := ts.driver.GetContent(ctx, p)
	if err != nil {
		if _, ok := err.(storagedriver.PathNotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}
	if len(raw)%tagRecordSize != 0 {
		return nil, fmt.Errorf("storage: corrupt tag stream at %s: length %d not a multiple of %d", p, len(raw), tagRecordSize)
	}
	name, _ := tagNameFromPath(p)
	n := len(raw) / tagRecordSize
	out := make([]Tag, n)
	for i := 0; i < n; i++ {
		off := i * tagRecordSize
		var parent, target digest.Digest
		copy(parent[:], raw[off:off+digest.Size])
		copy(target[:], raw[off+digest.Size:off+2*digest.Size])

		tsOff := off + 2*digest.Size
		timestamp := int64(binary.BigEndian.Uint64(raw[tsOff : tsOff+tagTimestampFieldSize]))

		userOff := tsOff + tagTimestampFieldSize
		user := bytes.TrimRight(raw[userOff:userOff+tagUserFieldSize], "\x00")

		out[i] = Tag{Name: name, Parent: parent, Target: target, Timestamp: timestamp, User: string(user)}
	}
	return out, nil
}

func (ts *TagStore) forEachTagFile(ctx context.Context, f func(name string) error) error {
	return ts.driver.Walk(ctx, tagsRoot, func(info storagedriver.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		name, ok := tagNameFromPath(info.Path())
		if !ok {
			return nil
		}
		return f(name)
	})
}

func mustTagPath(name string) string {
	p, err := tagPath(name)
	if err != nil {
		return ""
	}
	return p
}

// UnknownTagError is returned when a tag name or revision does not exist.
type UnknownTagError struct {
	Spec string
}

func (e UnknownTagError) Error() string {
	return fmt.Sprintf("storage: unknown tag %q", e.Spec)
}
