package solve

import (
	"testing"

	"github.com/spkfs/spfs/spk/api"
)

func specFor(name, version string) api.Spec {
	return api.Spec{Pkg: api.NewIdent(name, api.MustParseVersion(version))}
}

func TestSolutionPreservesInsertionOrder(t *testing.T) {
	sol := NewSolution()
	sol.Add(api.Request{}, specFor("b", "1.0"), PackageSource{})
	sol.Add(api.Request{}, specFor("a", "1.0"), PackageSource{})
	if got := sol.Names(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("expected insertion order [b a], got %v", got)
	}
}

func TestSolutionRemove(t *testing.T) {
	sol := NewSolution()
	sol.Add(api.Request{}, specFor("a", "1.0"), PackageSource{})
	sol.Remove("a")
	if sol.Len() != 0 {
		t.Fatalf("expected empty solution after remove, got %d", sol.Len())
	}
	if _, _, ok := sol.Get("a"); ok {
		t.Fatal("expected a to be gone")
	}
}

func TestSolutionClone(t *testing.T) {
	sol := NewSolution()
	sol.Add(api.Request{}, specFor("a", "1.0"), PackageSource{})
	clone := sol.Clone()
	clone.Add(api.Request{}, specFor("b", "1.0"), PackageSource{})
	if sol.Len() != 1 {
		t.Fatalf("expected original to be unaffected by clone mutation, got %d", sol.Len())
	}
}

func TestSolutionSatisfies(t *testing.T) {
	sol := NewSolution()
	sol.Add(api.Request{}, specFor("a", "1.5.0"), PackageSource{})

	inRange, _ := api.ParseVersionRange(">=1")
	if !sol.Satisfies(api.PkgRequest{Name: "a", Range: inRange}) {
		t.Fatal("expected 1.5.0 to satisfy >=1")
	}
	outOfRange, _ := api.ParseVersionRange(">=2")
	if sol.Satisfies(api.PkgRequest{Name: "a", Range: outOfRange}) {
		t.Fatal("expected 1.5.0 to not satisfy >=2")
	}
	if sol.Satisfies(api.PkgRequest{Name: "missing", Range: api.AnyVersion}) {
		t.Fatal("expected unresolved name to not satisfy")
	}
}
