package solve

import (
	"context"
	"errors"
	"testing"

	"github.com/spkfs/spfs/spk/api"
)

// memRepo is a fixed, in-memory Repository used only to exercise the
// solver; SPK's real repository (spk/storage) backs the same interface
// with SPFS layers.
type memRepo struct {
	specs map[string][]api.Spec
}

func newMemRepo() *memRepo {
	return &memRepo{specs: make(map[string][]api.Spec)}
}

func (r *memRepo) add(spec api.Spec) {
	r.specs[spec.Pkg.Name] = append(r.specs[spec.Pkg.Name], spec)
}

func (r *memRepo) Versions(name string) ([]api.Version, error) {
	var out []api.Version
	for _, s := range r.specs[name] {
		out = append(out, s.Pkg.Version)
	}
	return out, nil
}

func (r *memRepo) ReadSpec(ident api.Ident) (api.Spec, error) {
	for _, s := range r.specs[ident.Name] {
		if s.Pkg.Version.Equal(ident.Version) {
			return s, nil
		}
	}
	return api.Spec{}, errors.New("spec not found")
}

func buildPkgRequestRequest(name, rangeStr string) api.Request {
	r := api.AnyVersion
	if rangeStr != "" {
		var err error
		r, err = api.ParseVersionRange(rangeStr)
		if err != nil {
			panic(err)
		}
	}
	return api.NewPkgRequest(api.PkgRequest{Name: name, Range: r, Inclusion: api.IncludeAlways})
}

func identSpec(name, version string) api.Ident {
	return api.NewIdent(name, api.MustParseVersion(version))
}

func TestSolverResolvesTriangle(t *testing.T) {
	repo := newMemRepo()
	repo.add(api.Spec{
		Pkg: identSpec("a", "1.0.0"),
		Install: api.InstallSpec{
			Requirements: []api.Request{buildPkgRequestRequest("b", "^1")},
		},
	})
	repo.add(api.Spec{
		Pkg: identSpec("b", "1.0.0"),
		Install: api.InstallSpec{
			Requirements: []api.Request{buildPkgRequestRequest("c", ">=2")},
		},
	})
	repo.add(api.Spec{Pkg: identSpec("c", "2.0.0")})
	repo.add(api.Spec{Pkg: identSpec("c", "2.1.0")})

	solver := NewSolver([]Repository{repo})
	sol, err := solver.Solve(context.Background(), []api.Request{buildPkgRequestRequest("a", "")})
	if err != nil {
		t.Fatalf("expected solve to succeed, got %v", err)
	}

	want := map[string]string{"a": "1.0.0", "b": "1.0.0", "c": "2.1.0"}
	if sol.Len() != len(want) {
		t.Fatalf("expected %d resolved packages, got %d (%v)", len(want), sol.Len(), sol.Names())
	}
	for name, version := range want {
		spec, _, ok := sol.Get(name)
		if !ok {
			t.Fatalf("expected %s to be resolved", name)
		}
		if spec.Pkg.Version.String() != version {
			t.Fatalf("expected %s to resolve to %s, got %s", name, version, spec.Pkg.Version)
		}
	}
}

func TestSolverBacktracks(t *testing.T) {
	repo := newMemRepo()
	repo.add(api.Spec{
		Pkg: identSpec("a", "1.0.0"),
		Install: api.InstallSpec{
			Requirements: []api.Request{buildPkgRequestRequest("b", "")},
		},
	})
	// b/2.0 is tried first (descending order) and requires c<1, which
	// conflicts with the pinned c=1.0 request; the solver must retreat
	// and pick b/1.0, which requires c>=1 instead.
	repo.add(api.Spec{
		Pkg: identSpec("b", "2.0.0"),
		Install: api.InstallSpec{
			Requirements: []api.Request{buildPkgRequestRequest("c", "<1")},
		},
	})
	repo.add(api.Spec{
		Pkg: identSpec("b", "1.0.0"),
		Install: api.InstallSpec{
			Requirements: []api.Request{buildPkgRequestRequest("c", ">=1")},
		},
	})
	repo.add(api.Spec{Pkg: identSpec("c", "0.9.0")})
	repo.add(api.Spec{Pkg: identSpec("c", "1.0.0")})

	solver := NewSolver([]Repository{repo})
	sol, err := solver.Solve(context.Background(), []api.Request{
		buildPkgRequestRequest("a", ""),
		buildPkgRequestRequest("c", "=1.0"),
	})
	if err != nil {
		t.Fatalf("expected solve to succeed, got %v", err)
	}

	spec, _, ok := sol.Get("b")
	if !ok || spec.Pkg.Version.String() != "1.0.0" {
		t.Fatalf("expected b to resolve to 1.0.0 after backtracking, got %+v", spec.Pkg)
	}
	cspec, _, ok := sol.Get("c")
	if !ok || cspec.Pkg.Version.String() != "1.0.0" {
		t.Fatalf("expected c to resolve to 1.0.0, got %+v", cspec.Pkg)
	}
}

func TestSolverReportsConflict(t *testing.T) {
	repo := newMemRepo()
	repo.add(api.Spec{Pkg: identSpec("a", "1.0.0")})
	repo.add(api.Spec{Pkg: identSpec("a", "2.5.0")})

	solver := NewSolver([]Repository{repo})
	_, err := solver.Solve(context.Background(), []api.Request{
		buildPkgRequestRequest("a", ">=2"),
		buildPkgRequestRequest("a", "<2"),
	})
	var conflict *api.ConflictingRequestsError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictingRequestsError, got %v", err)
	}
}

func TestSolverRejectsIncompatibleOption(t *testing.T) {
	repo := newMemRepo()
	repo.add(api.Spec{
		Pkg: identSpec("c", "2.0.0"),
		Build: api.BuildSpec{
			Options: []api.Request{api.NewVarRequest(api.VarRequest{Name: "debug", Value: "true"})},
		},
	})
	repo.add(api.Spec{
		Pkg: identSpec("c", "1.0.0"),
		Build: api.BuildSpec{
			Options: []api.Request{api.NewVarRequest(api.VarRequest{Name: "debug", Value: "false"})},
		},
	})

	solver := NewSolver([]Repository{repo})
	sol, err := solver.Solve(context.Background(), []api.Request{
		buildPkgRequestRequest("c", ""),
		api.NewVarRequest(api.VarRequest{Name: "debug", Value: "false"}),
	})
	if err != nil {
		t.Fatalf("expected solve to succeed by backtracking past the incompatible build, got %v", err)
	}

	spec, _, ok := sol.Get("c")
	if !ok || spec.Pkg.Version.String() != "1.0.0" {
		t.Fatalf("expected c to resolve to 1.0.0 (debug=false), got %+v", spec.Pkg)
	}
}

func TestSolverCancellation(t *testing.T) {
	repo := newMemRepo()
	repo.add(api.Spec{Pkg: identSpec("a", "1.0.0")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	solver := NewSolver([]Repository{repo})
	_, err := solver.Solve(ctx, []api.Request{buildPkgRequestRequest("a", "")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
