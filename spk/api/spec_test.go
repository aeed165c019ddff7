package api

import "testing"

func TestSpecIsFamily(t *testing.T) {
	s := Spec{Pkg: NewIdent("python", MustParseVersion("3.9.0"))}
	if !s.IsFamily() {
		t.Fatal("expected unbuilt spec to be a family")
	}
	s.Pkg.Build = &SrcBuild
	if s.IsFamily() {
		t.Fatal("expected built spec to not be a family")
	}
}

func TestSpecDigestBuildOptions(t *testing.T) {
	s := Spec{
		Build: BuildSpec{
			Options: []Request{
				NewVarRequest(VarRequest{Name: "debug"}),
			},
		},
	}
	opts := OptionMap{"debug": "on", "unrelated": "x"}
	subset := s.DigestBuildOptions(opts)
	if _, ok := subset["unrelated"]; ok {
		t.Fatal("expected unrelated option to be excluded")
	}
	if subset["debug"] != "on" {
		t.Fatalf("got %v", subset)
	}
}

func TestSpecEmbeddedRequests(t *testing.T) {
	s := Spec{
		Install: InstallSpec{
			Embedded: []Ident{NewIdent("libssl", MustParseVersion("1.1.0"))},
		},
	}
	reqs := s.EmbeddedRequests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Inclusion != IncludeAlways {
		t.Fatal("expected embedded request to always be included")
	}
	if !reqs[0].Range.Satisfies(MustParseVersion("1.1.0")) {
		t.Fatal("expected exact version to satisfy")
	}
	if reqs[0].Range.Satisfies(MustParseVersion("1.1.1")) {
		t.Fatal("expected a different version to not satisfy")
	}
}

func TestSpecHasComponent(t *testing.T) {
	s := Spec{Install: InstallSpec{Components: []string{"run", "dev"}}}
	if !s.HasComponent("dev") {
		t.Fatal("expected dev component present")
	}
	if s.HasComponent("doc") {
		t.Fatal("expected doc component absent")
	}
}
