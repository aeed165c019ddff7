package storage

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/spkfs/spfs/pkg/digest"
)

// TagSpec identifies a position within a tag's history: Name selects the
// append-only stream, Version selects which record in it.
//
// Version grammar (spec §6): "~" or empty selects the head (most recent
// record); a non-negative integer selects the nth record counting back
// from head (0 == head); a string of lowercase hex digits is treated as a
// digest prefix identifying a specific revision by the digest of its
// record. Any other version is rejected as unrecognized.
type TagSpec struct {
	Name    string
	Version string
}

// ParseTagSpec parses "name[:version]" into a TagSpec.
func ParseTagSpec(spec string) (TagSpec, error) {
	name, version, found := strings.Cut(spec, ":")
	if !found {
		version = ""
	}
	name = strings.Trim(name, "/")
	if name == "" {
		return TagSpec{}, InvalidRefError{Ref: spec, Reason: "empty tag name"}
	}
	return TagSpec{Name: name, Version: version}, nil
}

func (s TagSpec) String() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + ":" + s.Version
}

// isHead reports whether the spec's version selects the current head.
func (s TagSpec) isHead() bool {
	return s.Version == "" || s.Version == "~"
}

// indexFromHead reports whether the version is a non-negative integer
// offset from head, returning that offset.
func (s TagSpec) indexFromHead() (int, bool) {
	if s.Version == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s.Version)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// digestPrefix reports whether the version looks like a hex digest prefix.
func (s TagSpec) digestPrefix() (string, bool) {
	if s.Version == "" || s.Version == "~" {
		return "", false
	}
	if _, ok := s.indexFromHead(); ok {
		return "", false
	}
	for _, r := range s.Version {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	return s.Version, true
}

// Tag is one record in a tag's append-only history.
type Tag struct {
	Name      string
	Parent    digest.Digest
	Target    digest.Digest
	User      string
	Timestamp int64 // unix seconds
}

// Time returns the record's timestamp as a time.Time.
func (t Tag) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// Digest returns the content digest identifying this specific tag record,
// used to address it by revision prefix.
func (t Tag) Digest() digest.Digest {
	buf := make([]byte, 0, len(t.Name)+len(t.User)+2*digest.Size+8)
	buf = append(buf, t.Name...)
	buf = append(buf, t.Parent[:]...)
	buf = append(buf, t.Target[:]...)
	buf = append(buf, t.User...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.Timestamp))
	return digest.FromBytes(buf)
}
