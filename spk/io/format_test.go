package io

import (
	"strings"
	"testing"

	"github.com/spkfs/spfs/spk/api"
	"github.com/spkfs/spfs/spk/solve"
)

func TestFormatIdentWithBuild(t *testing.T) {
	ident := api.NewIdent("python", api.MustParseVersion("3.9.0")).WithBuild(api.SrcBuild)
	got := FormatIdent(ident)
	if got != "python/3.9.0/src" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDecisionShowsResolveAndRequest(t *testing.T) {
	tree := solve.NewDecisionTree()
	root := tree.Root()
	root.AddRequest(api.NewPkgRequest(api.PkgRequest{Name: "a", Range: api.AnyVersion}))
	root.ForceSetResolved(api.Request{}, api.Spec{Pkg: api.NewIdent("a", api.MustParseVersion("1.0.0"))}, solve.PackageSource{})

	out := FormatDecision(root, 1)
	if !strings.Contains(out, "RESOLVE a/1.0.0") {
		t.Fatalf("expected RESOLVE line, got %q", out)
	}
	if !strings.Contains(out, "REQUEST a/*") {
		t.Fatalf("expected REQUEST line, got %q", out)
	}
}

func TestFormatDecisionTreeIndentsByDepth(t *testing.T) {
	tree := solve.NewDecisionTree()
	root := tree.Root()
	root.AddRequest(api.NewPkgRequest(api.PkgRequest{Name: "a", Range: api.AnyVersion}))
	child := root.AddBranch()
	child.ForceSetResolved(api.Request{}, api.Spec{Pkg: api.NewIdent("a", api.MustParseVersion("1.0.0"))}, solve.PackageSource{})

	out := FormatDecisionTree(tree, 1)
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		t.Fatalf("expected at least 2 lines, got %q", out)
	}
	if !strings.HasPrefix(lines[0], " ") {
		t.Fatalf("expected root line with no '>' prefix, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], ">") {
		t.Fatalf("expected child line prefixed with '>', got %q", lines[1])
	}
}

func TestFormatSolutionListsPackages(t *testing.T) {
	sol := solve.NewSolution()
	sol.Add(api.Request{}, api.Spec{Pkg: api.NewIdent("a", api.MustParseVersion("1.0.0"))}, solve.PackageSource{})

	out := FormatSolution(sol)
	if !strings.Contains(out, "a/1.0.0") {
		t.Fatalf("expected package listed, got %q", out)
	}
}
