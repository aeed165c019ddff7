// Package solve implements the SPK backtracking dependency solver: given a
// set of package requests and one or more repositories, it produces a
// Solution that satisfies every transitive requirement, or a diagnostic
// error chain explaining why none exists.
package solve

import (
	"github.com/spkfs/spfs/spk/api"
)

// Repository is the read side of package storage the solver needs: the
// set of versions a name has, and the Spec for one concrete Ident. SPK's
// storage package implements this atop an SPFS repository.
type Repository interface {
	Versions(name string) ([]api.Version, error)
	ReadSpec(ident api.Ident) (api.Spec, error)
}

// PackageSource records where a resolved package came from: directly from
// a repository, or injected by a parent spec that embeds it.
type PackageSource struct {
	Repository Repository
	EmbeddedBy *api.Spec
}

// resolvedPackage is one entry of a Solution.
type resolvedPackage struct {
	Request api.Request
	Spec    api.Spec
	Source  PackageSource
}

// Solution is an ordered mapping from package name to how it was
// resolved. Insertion order is preserved so that re-running a solve over
// an unchanged repository produces a reproducible environment ordering.
type Solution struct {
	order []string
	byName map[string]resolvedPackage
}

// NewSolution returns an empty Solution.
func NewSolution() *Solution {
	return &Solution{byName: make(map[string]resolvedPackage)}
}

// Add records name as resolved by request/spec/source, appending it to
// the insertion order if it is new.
func (s *Solution) Add(request api.Request, spec api.Spec, source PackageSource) {
	name := spec.Pkg.Name
	if _, ok := s.byName[name]; !ok {
		s.order = append(s.order, name)
	}
	s.byName[name] = resolvedPackage{Request: request, Spec: spec, Source: source}
}

// Remove drops name from the solution, if present.
func (s *Solution) Remove(name string) {
	if _, ok := s.byName[name]; !ok {
		return
	}
	delete(s.byName, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the resolved package for name, if any.
func (s *Solution) Get(name string) (api.Spec, api.Request, bool) {
	rp, ok := s.byName[name]
	return rp.Spec, rp.Request, ok
}

// Names returns every resolved package name, in insertion order.
func (s *Solution) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of resolved packages.
func (s *Solution) Len() int { return len(s.order) }

// Clone returns an independent copy of s.
func (s *Solution) Clone() *Solution {
	out := NewSolution()
	out.order = append([]string{}, s.order...)
	for k, v := range s.byName {
		out.byName[k] = v
	}
	return out
}

// Update overlays other onto s in place: other's entries win on
// name collisions, and new names are appended in other's insertion order.
func (s *Solution) Update(other *Solution) {
	for _, name := range other.order {
		rp := other.byName[name]
		s.Add(rp.Request, rp.Spec, rp.Source)
	}
}

// Satisfies reports whether the package resolved under name (if any)
// satisfies req: its version falls within req's range, and, if req names
// an exact build, the resolved build matches.
func (s *Solution) Satisfies(req api.PkgRequest) bool {
	rp, ok := s.byName[req.Name]
	if !ok {
		return false
	}
	if !req.Range.Satisfies(rp.Spec.Pkg.Version) {
		return false
	}
	if req.Build != nil {
		if rp.Spec.Pkg.Build == nil || *rp.Spec.Pkg.Build != *req.Build {
			return false
		}
	}
	return true
}

// ResolvedItem is one entry of a Solution, as returned by Items.
type ResolvedItem struct {
	Name    string
	Spec    api.Spec
	Request api.Request
	Source  PackageSource
}

// Items returns every resolved package in insertion order.
func (s *Solution) Items() []ResolvedItem {
	out := make([]ResolvedItem, 0, len(s.order))
	for _, name := range s.order {
		rp := s.byName[name]
		out = append(out, ResolvedItem{Name: name, Spec: rp.Spec, Request: rp.Request, Source: rp.Source})
	}
	return out
}
