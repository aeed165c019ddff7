package solve

import "testing"

func TestPackageIteratorDescendingOrder(t *testing.T) {
	repo := newMemRepo()
	repo.add(specFor("a", "1.0.0"))
	repo.add(specFor("a", "2.0.0"))
	repo.add(specFor("a", "1.5.0"))

	it, err := NewPackageIterator("a", []Repository{repo})
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for {
		spec, _, ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, spec.Pkg.Version.String())
	}

	want := []string{"2.0.0", "1.5.0", "1.0.0"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPackageIteratorCloneIsIndependent(t *testing.T) {
	repo := newMemRepo()
	repo.add(specFor("a", "1.0.0"))
	repo.add(specFor("a", "2.0.0"))

	it, err := NewPackageIterator("a", []Repository{repo})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := it.Next(); err != nil {
		t.Fatal(err)
	}

	clone := it.Clone()
	if _, _, _, err := it.Next(); err != nil {
		t.Fatal(err)
	}

	spec, _, ok, err := clone.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ok || spec.Pkg.Version.String() != "1.0.0" {
		t.Fatalf("expected clone's cursor to be unaffected by the original's further advance, got %+v", spec.Pkg)
	}
}
