package digest

import "testing"

func TestFromBytesDeterministic(t *testing.T) {
	a := FromBytes([]byte("hello world"))
	b := FromBytes([]byte("hello world"))
	if a != b {
		t.Fatalf("expected equal digests, got %s != %s", a, b)
	}
}

func TestNullIsZero(t *testing.T) {
	var zero Digest
	if !zero.IsNull() {
		t.Fatal("zero value should be NULL")
	}
	if !NULL.IsNull() {
		t.Fatal("NULL constant should be NULL")
	}
}

func TestHexRoundTrip(t *testing.T) {
	d := FromBytes([]byte("round trip me"))
	parsed, err := FromHex(d.String())
	if err != nil {
		t.Fatal(err)
	}
	if parsed != d {
		t.Fatalf("round trip mismatch: %s != %s", parsed, d)
	}
}

func TestFromHexInvalidLength(t *testing.T) {
	if _, err := FromHex("deadbeef"); err != ErrInvalidLength {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestFromHexInvalidChars(t *testing.T) {
	bad := make([]byte, Size*2)
	for i := range bad {
		bad[i] = 'z'
	}
	if _, err := FromHex(string(bad)); err == nil {
		t.Fatal("expected error for non-hex string")
	}
}

func TestShort(t *testing.T) {
	d := FromBytes([]byte("abc"))
	if got := d.Short(8); len(got) != 8 {
		t.Fatalf("expected 8 chars, got %d (%s)", len(got), got)
	}
	if got := d.Short(1000); got != d.String() {
		t.Fatal("oversized short should clamp to full string")
	}
}

func TestHasPrefix(t *testing.T) {
	d := FromBytes([]byte("prefix test"))
	if !d.HasPrefix(d.Short(6)) {
		t.Fatal("digest should have its own prefix")
	}
	if d.HasPrefix("zzzzzz") {
		t.Fatal("unrelated prefix should not match")
	}
}

func TestCompareOrdering(t *testing.T) {
	a := Digest{0x01}
	b := Digest{0x02}
	if Compare(a, b) >= 0 {
		t.Fatal("expected a < b")
	}
	if Compare(b, a) <= 0 {
		t.Fatal("expected b > a")
	}
	if Compare(a, a) != 0 {
		t.Fatal("expected equal digests to compare 0")
	}
}

func TestHasherMatchesFromBytes(t *testing.T) {
	h := NewHasher()
	_, _ = h.Write([]byte("hello "))
	_, _ = h.Write([]byte("world"))
	if h.Digest() != FromBytes([]byte("hello world")) {
		t.Fatal("incremental hasher should match one-shot digest")
	}
}
