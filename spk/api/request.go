package api

import (
	"fmt"
	"strings"
)

// InclusionPolicy controls whether a package must always be present in a
// solution or only needs to be present if something else already requires
// it.
type InclusionPolicy int

const (
	// IncludeIfAlreadyPresent only requires the package if another
	// request has already introduced it into the solution.
	IncludeIfAlreadyPresent InclusionPolicy = iota
	// IncludeAlways always requires the package to be resolved.
	IncludeAlways
)

func (p InclusionPolicy) String() string {
	if p == IncludeAlways {
		return "Always"
	}
	return "IfAlreadyPresent"
}

// max returns whichever of p, other is the stricter policy; Always wins
// over IfAlreadyPresent.
func (p InclusionPolicy) max(other InclusionPolicy) InclusionPolicy {
	if p == IncludeAlways || other == IncludeAlways {
		return IncludeAlways
	}
	return IncludeIfAlreadyPresent
}

// PrereleasePolicy controls whether pre-release versions are acceptable
// candidates for a request.
type PrereleasePolicy int

const (
	// DenyPrereleases excludes pre-release versions from consideration.
	DenyPrereleases PrereleasePolicy = iota
	// AllowPrereleases permits pre-release versions to satisfy the request.
	AllowPrereleases
)

func (p PrereleasePolicy) String() string {
	if p == AllowPrereleases {
		return "AllowPrereleases"
	}
	return "DenyPrereleases"
}

// intersect returns the stricter of p, other: deny wins over allow.
func (p PrereleasePolicy) intersect(other PrereleasePolicy) PrereleasePolicy {
	if p == DenyPrereleases || other == DenyPrereleases {
		return DenyPrereleases
	}
	return AllowPrereleases
}

// PkgRequest asks the solver to resolve a package by name within a version
// range, optionally restricted to a specific build.
type PkgRequest struct {
	Name       string
	Range      VersionRange
	Build      *Build
	Inclusion  InclusionPolicy
	Prerelease PrereleasePolicy
}

// parsePkgRequest parses "name", "name/range", or "name/range/build".
func parsePkgRequest(raw string) (PkgRequest, error) {
	parts := strings.SplitN(raw, "/", 3)
	req := PkgRequest{Name: parts[0], Range: AnyVersion}
	if req.Name == "" {
		return PkgRequest{}, fmt.Errorf("api: invalid pkg request %q: missing name", raw)
	}
	if len(parts) >= 2 && parts[1] != "" {
		r, err := ParseVersionRange(parts[1])
		if err != nil {
			return PkgRequest{}, fmt.Errorf("api: invalid pkg request %q: %w", raw, err)
		}
		req.Range = r
	}
	if len(parts) == 3 && parts[2] != "" {
		b, err := ParseBuild(parts[2])
		if err != nil {
			return PkgRequest{}, fmt.Errorf("api: invalid pkg request %q: %w", raw, err)
		}
		req.Build = &b
	}
	return req, nil
}

func (r PkgRequest) String() string {
	s := r.Name
	if !r.Range.any {
		s += "/" + r.Range.String()
	}
	if r.Build != nil {
		s += "/" + r.Build.String()
	}
	return s
}

// restrict merges r with other, which must name the same package, by
// intersecting their constraints. Returns a ConflictingRequestsError if the
// merge is unsatisfiable.
func (r PkgRequest) restrict(other PkgRequest) (PkgRequest, error) {
	if r.Name != other.Name {
		return PkgRequest{}, fmt.Errorf("api: cannot restrict requests for different packages: %s, %s", r.Name, other.Name)
	}

	merged, ok := r.Range.Intersect(other.Range)
	if !ok {
		return PkgRequest{}, &ConflictingRequestsError{
			Message:  fmt.Sprintf("no version of %s satisfies both %s and %s", r.Name, r.Range, other.Range),
			Requests: []PkgRequest{r, other},
		}
	}

	build := r.Build
	if other.Build != nil {
		if build != nil && *build != *other.Build {
			return PkgRequest{}, &ConflictingRequestsError{
				Message:  fmt.Sprintf("conflicting build constraints for %s: %s and %s", r.Name, build, other.Build),
				Requests: []PkgRequest{r, other},
			}
		}
		build = other.Build
	}

	return PkgRequest{
		Name:       r.Name,
		Range:      merged,
		Build:      build,
		Inclusion:  r.Inclusion.max(other.Inclusion),
		Prerelease: r.Prerelease.intersect(other.Prerelease),
	}, nil
}

// VarRequest pins a build option to a specific value, independent of any
// particular package.
type VarRequest struct {
	Name  string
	Value string
}

func parseVarRequest(raw string) (VarRequest, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || name == "" {
		return VarRequest{}, fmt.Errorf("api: invalid var request %q: expected name=value", raw)
	}
	return VarRequest{Name: name, Value: value}, nil
}

func (r VarRequest) String() string {
	return r.Name + "=" + r.Value
}

// Request is a tagged union over PkgRequest and VarRequest, exactly one of
// which is set. It decodes from YAML entries of the form `pkg: name/range`
// or `var: name=value`.
type Request struct {
	Pkg *PkgRequest
	Var *VarRequest
}

// NewPkgRequest wraps a PkgRequest as a Request.
func NewPkgRequest(r PkgRequest) Request { return Request{Pkg: &r} }

// NewVarRequest wraps a VarRequest as a Request.
func NewVarRequest(r VarRequest) Request { return Request{Var: &r} }

// Name returns the name of the package or variable the request concerns.
func (r Request) Name() string {
	if r.Pkg != nil {
		return r.Pkg.Name
	}
	if r.Var != nil {
		return r.Var.Name
	}
	return ""
}

func (r Request) String() string {
	if r.Pkg != nil {
		return r.Pkg.String()
	}
	if r.Var != nil {
		return r.Var.String()
	}
	return ""
}

type rawRequest struct {
	Pkg        string `yaml:"pkg"`
	Var        string `yaml:"var"`
	Include    string `yaml:"include"`
	Prerelease string `yaml:"prereleasePolicy"`
}

// UnmarshalYAML dispatches on whether the "pkg" or "var" field is present,
// replacing the dynamic-dispatch request hierarchy with a tagged sum type
// resolved during parse.
func (r *Request) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawRequest
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch {
	case raw.Pkg != "":
		pr, err := parsePkgRequest(raw.Pkg)
		if err != nil {
			return err
		}
		switch raw.Include {
		case "", "Always":
			pr.Inclusion = IncludeAlways
		case "IfAlreadyPresent":
			pr.Inclusion = IncludeIfAlreadyPresent
		default:
			return fmt.Errorf("api: invalid include policy %q", raw.Include)
		}
		switch raw.Prerelease {
		case "", "DenyPrereleases":
			pr.Prerelease = DenyPrereleases
		case "AllowPrereleases":
			pr.Prerelease = AllowPrereleases
		default:
			return fmt.Errorf("api: invalid prerelease policy %q", raw.Prerelease)
		}
		r.Pkg = &pr
		r.Var = nil
	case raw.Var != "":
		vr, err := parseVarRequest(raw.Var)
		if err != nil {
			return err
		}
		r.Var = &vr
		r.Pkg = nil
	default:
		return fmt.Errorf("api: request must set either \"pkg\" or \"var\"")
	}
	return nil
}

// ConflictingRequestsError reports that two or more requests could not be
// merged into a single satisfiable constraint.
type ConflictingRequestsError struct {
	Message  string
	Requests []PkgRequest
}

func (e *ConflictingRequestsError) Error() string {
	return "conflicting requests: " + e.Message
}

// RestrictAll merges a non-empty slice of PkgRequests for the same package
// into a single request, or returns a ConflictingRequestsError.
func RestrictAll(requests []PkgRequest) (PkgRequest, error) {
	if len(requests) == 0 {
		return PkgRequest{}, fmt.Errorf("api: cannot restrict an empty request list")
	}
	merged := requests[0]
	for _, next := range requests[1:] {
		var err error
		merged, err = merged.restrict(next)
		if err != nil {
			return PkgRequest{}, err
		}
	}
	return merged, nil
}
