package graph

import (
	"fmt"

	"github.com/spkfs/spfs/pkg/digest"
)

// UnknownObjectError is returned by Database.ReadObject when no object with
// the given digest is stored.
type UnknownObjectError struct {
	Digest digest.Digest
}

func (e UnknownObjectError) Error() string {
	return fmt.Sprintf("graph: unknown object %s", e.Digest)
}

// UnknownReferenceError is returned when a digest prefix matches no stored
// object.
type UnknownReferenceError struct {
	Ref string
}

func (e UnknownReferenceError) Error() string {
	return fmt.Sprintf("graph: unknown reference %q", e.Ref)
}

// AmbiguousReferenceError is returned when a digest prefix matches more
// than one stored object.
type AmbiguousReferenceError struct {
	Ref        string
	Candidates []digest.Digest
}

func (e AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("graph: reference %q is ambiguous, matches %d objects", e.Ref, len(e.Candidates))
}
