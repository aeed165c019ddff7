package api

import (
	"strings"
)

// op is one of the comparison operators a single VersionRange clause can
// carry: >=, <=, >, <, =, or ^ (caret, "compatible with").
type op int

const (
	opGTE op = iota
	opLTE
	opGT
	opLT
	opEQ
	opCaret
)

type clause struct {
	op      op
	version Version
}

// VersionRange is a conjunction ("and") of clauses, parsed from a
// comma-separated string such as ">=1.0,<2.0" or a bare "^1" or "*" for
// "any version".
type VersionRange struct {
	clauses []clause
	any     bool
}

// AnyVersion matches every version.
var AnyVersion = VersionRange{any: true}

// ParseVersionRange parses a comma-separated list of clauses.
func ParseVersionRange(s string) (VersionRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return AnyVersion, nil
	}

	var r VersionRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseClause(part)
		if err != nil {
			return VersionRange{}, err
		}
		r.clauses = append(r.clauses, c)
	}
	if len(r.clauses) == 0 {
		return AnyVersion, nil
	}
	return r, nil
}

func parseClause(s string) (clause, error) {
	switch {
	case strings.HasPrefix(s, ">="):
		v, err := ParseVersion(s[2:])
		return clause{op: opGTE, version: v}, err
	case strings.HasPrefix(s, "<="):
		v, err := ParseVersion(s[2:])
		return clause{op: opLTE, version: v}, err
	case strings.HasPrefix(s, ">"):
		v, err := ParseVersion(s[1:])
		return clause{op: opGT, version: v}, err
	case strings.HasPrefix(s, "<"):
		v, err := ParseVersion(s[1:])
		return clause{op: opLT, version: v}, err
	case strings.HasPrefix(s, "^"):
		v, err := ParseVersion(s[1:])
		return clause{op: opCaret, version: v}, err
	case strings.HasPrefix(s, "="):
		v, err := ParseVersion(s[1:])
		return clause{op: opEQ, version: v}, err
	default:
		v, err := ParseVersion(s)
		return clause{op: opEQ, version: v}, err
	}
}

func (c clause) satisfiedBy(v Version) bool {
	switch c.op {
	case opGTE:
		return Compare(v, c.version) >= 0
	case opLTE:
		return Compare(v, c.version) <= 0
	case opGT:
		return Compare(v, c.version) > 0
	case opLT:
		return Compare(v, c.version) < 0
	case opEQ:
		return v.Equal(c.version)
	case opCaret:
		// Compatible with c.version: same first (major) part, >= the
		// given version. A leading zero part gets no special treatment.
		if Compare(v, c.version) < 0 {
			return false
		}
		return v.Part(0) == c.version.Part(0)
	default:
		return false
	}
}

func (c clause) String() string {
	switch c.op {
	case opGTE:
		return ">=" + c.version.String()
	case opLTE:
		return "<=" + c.version.String()
	case opGT:
		return ">" + c.version.String()
	case opLT:
		return "<" + c.version.String()
	case opCaret:
		return "^" + c.version.String()
	default:
		return "=" + c.version.String()
	}
}

// Satisfies reports whether v satisfies every clause in the range.
func (r VersionRange) Satisfies(v Version) bool {
	if r.any {
		return true
	}
	for _, c := range r.clauses {
		if !c.satisfiedBy(v) {
			return false
		}
	}
	return true
}

func (r VersionRange) String() string {
	if r.any {
		return "*"
	}
	parts := make([]string, len(r.clauses))
	for i, c := range r.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Intersect returns the conjunction of r and other: a version must
// satisfy both to satisfy the result. Reports false if it can prove the
// result is unsatisfiable for every version in the domain exercised by
// the clauses (a conservative, not exhaustive, check: it catches the
// direct opposite-direction-bound conflicts the solver needs).
func (r VersionRange) Intersect(other VersionRange) (VersionRange, bool) {
	if r.any {
		return other, true
	}
	if other.any {
		return r, true
	}

	merged := VersionRange{clauses: append(append([]clause{}, r.clauses...), other.clauses...)}
	if !rangeIsConsistent(merged) {
		return VersionRange{}, false
	}
	return merged, true
}

// rangeIsConsistent does a pairwise check of the range's lower/upper
// bounds, catching the common conflict shape (e.g. ">=2" and "<2").
func rangeIsConsistent(r VersionRange) bool {
	var lowerBound *Version
	var lowerInclusive bool
	var upperBound *Version
	var upperInclusive bool

	for _, c := range r.clauses {
		switch c.op {
		case opGTE, opCaret:
			if lowerBound == nil || Compare(c.version, *lowerBound) > 0 {
				v := c.version
				lowerBound = &v
				lowerInclusive = true
			}
		case opGT:
			if lowerBound == nil || Compare(c.version, *lowerBound) >= 0 {
				v := c.version
				lowerBound = &v
				lowerInclusive = false
			}
		case opLTE:
			if upperBound == nil || Compare(c.version, *upperBound) < 0 {
				v := c.version
				upperBound = &v
				upperInclusive = true
			}
		case opLT:
			if upperBound == nil || Compare(c.version, *upperBound) <= 0 {
				v := c.version
				upperBound = &v
				upperInclusive = false
			}
		case opEQ:
			if lowerBound == nil || Compare(c.version, *lowerBound) > 0 {
				v := c.version
				lowerBound = &v
				lowerInclusive = true
			}
			if upperBound == nil || Compare(c.version, *upperBound) < 0 {
				v := c.version
				upperBound = &v
				upperInclusive = true
			}
		}
	}

	if lowerBound == nil || upperBound == nil {
		return true
	}
	cmp := Compare(*lowerBound, *upperBound)
	if cmp < 0 {
		return true
	}
	if cmp == 0 {
		return lowerInclusive && upperInclusive
	}
	return false
}
