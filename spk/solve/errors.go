package solve

import (
	"fmt"
	"strings"
)

// SolverError is the base type for diagnostics attached to a failing
// Decision; GetErrorChain returns a slice of these (and their wrapped
// causes) describing the last unwind of a failed resolve.
type SolverError struct {
	Message string
	Cause   error
}

func (e *SolverError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SolverError) Unwrap() error { return e.Cause }

// UnresolvedPackageError reports that no candidate build of name could be
// resolved; history records, for each build tried, why it was rejected.
type UnresolvedPackageError struct {
	Name    string
	History map[string]string
}

func (e *UnresolvedPackageError) Error() string {
	if len(e.History) == 0 {
		return fmt.Sprintf("failed to resolve %q: no versions available", e.Name)
	}
	var reasons []string
	for build, reason := range e.History {
		reasons = append(reasons, fmt.Sprintf("%s (%s)", build, reason))
	}
	return fmt.Sprintf("failed to resolve %q: tried %s", e.Name, strings.Join(reasons, ", "))
}
