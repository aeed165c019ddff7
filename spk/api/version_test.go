package api

import "testing"

func TestParseVersionRoundTrip(t *testing.T) {
	v, err := ParseVersion("1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "1.2.3" {
		t.Fatalf("got %q", v.String())
	}
}

func TestCompareNumericParts(t *testing.T) {
	a := MustParseVersion("1.2.0")
	b := MustParseVersion("1.10.0")
	if Compare(a, b) >= 0 {
		t.Fatal("expected 1.2.0 < 1.10.0")
	}
}

func TestCompareMissingPartsAreZero(t *testing.T) {
	a := MustParseVersion("1.2")
	b := MustParseVersion("1.2.0")
	if !a.Equal(b) {
		t.Fatal("expected 1.2 == 1.2.0")
	}
}

func TestPrereleaseSortsBeforeRelease(t *testing.T) {
	pre := MustParseVersion("1.0.0-rc.1")
	release := MustParseVersion("1.0.0")
	if !pre.Less(release) {
		t.Fatal("expected pre-release to sort before release")
	}
}

func TestParseVersionRejectsEmpty(t *testing.T) {
	if _, err := ParseVersion(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseVersionRejectsNonNumeric(t *testing.T) {
	if _, err := ParseVersion("a.b.c"); err == nil {
		t.Fatal("expected error")
	}
}
