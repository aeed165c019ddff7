package api

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a dotted sequence of numeric parts with an optional
// pre-release tag, post-release tag and build metadata, ordered with
// semver-like rules: numeric parts compare left to right, a version
// with a pre-release tag sorts before the same version without one,
// build metadata never affects ordering.
type Version struct {
	Parts []uint64
	Pre   string
	Post  string
	Build string
}

// ParseVersion parses a string of the form "1.2.3-rc.1~post.2+meta"
// (post-release and build metadata are optional and rarely used; most
// specs only carry dotted parts and an optional pre-release tag).
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("api: empty version")
	}

	v := Version{}
	rest := s

	if i := strings.IndexByte(rest, '+'); i >= 0 {
		v.Build = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '~'); i >= 0 {
		v.Post = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '-'); i >= 0 {
		v.Pre = rest[i+1:]
		rest = rest[:i]
	}

	for _, part := range strings.Split(rest, ".") {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("api: invalid version %q: %w", s, err)
		}
		v.Parts = append(v.Parts, n)
	}
	if len(v.Parts) == 0 {
		return Version{}, fmt.Errorf("api: invalid version %q: no numeric parts", s)
	}
	return v, nil
}

// MustParseVersion is ParseVersion, panicking on error; useful for tests
// and literal version constants.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	parts := make([]string, len(v.Parts))
	for i, p := range v.Parts {
		parts[i] = strconv.FormatUint(p, 10)
	}
	s := strings.Join(parts, ".")
	if v.Pre != "" {
		s += "-" + v.Pre
	}
	if v.Post != "" {
		s += "~" + v.Post
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Part returns the i'th dotted numeric part, or 0 if the version has
// fewer parts (so "1.2" and "1.2.0" compare equal).
func (v Version) Part(i int) uint64 {
	if i < len(v.Parts) {
		return v.Parts[i]
	}
	return 0
}

// Compare returns -1, 0 or 1 as v is less than, equal to, or greater
// than other. Build metadata never participates.
func Compare(a, b Version) int {
	n := len(a.Parts)
	if len(b.Parts) > n {
		n = len(b.Parts)
	}
	for i := 0; i < n; i++ {
		ap, bp := a.Part(i), b.Part(i)
		if ap != bp {
			if ap < bp {
				return -1
			}
			return 1
		}
	}

	switch {
	case a.Pre == "" && b.Pre != "":
		return 1
	case a.Pre != "" && b.Pre == "":
		return -1
	case a.Pre != b.Pre:
		return strings.Compare(a.Pre, b.Pre)
	}

	return strings.Compare(a.Post, b.Post)
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool { return Compare(v, other) < 0 }

// Equal reports whether v and other compare equal (ignoring build metadata).
func (v Version) Equal(other Version) bool { return Compare(v, other) == 0 }
