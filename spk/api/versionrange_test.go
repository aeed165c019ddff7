package api

import "testing"

func TestRangeSatisfiesGTE(t *testing.T) {
	r, err := ParseVersionRange(">=2")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Satisfies(MustParseVersion("2.1")) {
		t.Fatal("expected 2.1 to satisfy >=2")
	}
	if r.Satisfies(MustParseVersion("1.9")) {
		t.Fatal("expected 1.9 to not satisfy >=2")
	}
}

func TestRangeCaret(t *testing.T) {
	r, err := ParseVersionRange("^1")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Satisfies(MustParseVersion("1.5.0")) {
		t.Fatal("expected 1.5.0 to satisfy ^1")
	}
	if r.Satisfies(MustParseVersion("2.0.0")) {
		t.Fatal("expected 2.0.0 to not satisfy ^1")
	}
}

func TestIntersectConflict(t *testing.T) {
	a, _ := ParseVersionRange(">=2")
	b, _ := ParseVersionRange("<2")
	if _, ok := a.Intersect(b); ok {
		t.Fatal("expected conflicting ranges to fail to intersect")
	}
}

func TestIntersectCompatible(t *testing.T) {
	a, _ := ParseVersionRange(">=1")
	b, _ := ParseVersionRange("<2")
	merged, ok := a.Intersect(b)
	if !ok {
		t.Fatal("expected ranges to intersect")
	}
	if !merged.Satisfies(MustParseVersion("1.5")) {
		t.Fatal("expected 1.5 to satisfy merged range")
	}
	if merged.Satisfies(MustParseVersion("2.5")) {
		t.Fatal("expected 2.5 to not satisfy merged range")
	}
}

func TestAnyVersionSatisfiesEverything(t *testing.T) {
	if !AnyVersion.Satisfies(MustParseVersion("0.0.1")) {
		t.Fatal("expected AnyVersion to satisfy everything")
	}
}
