package graph

import (
	"bytes"
	"testing"

	"github.com/spkfs/spfs/pkg/digest"
)

func TestContentAddressing(t *testing.T) {
	// Universal property 1: digest(encode(o)) == stored_digest(o) for every
	// variant.
	payload := digest.FromBytes([]byte("payload"))
	objs := []Object{
		Blob{Payload: payload, Size: 7},
		Tree{Entries: []Entry{{Name: "a", Kind: EntryBlob, Mode: 0o644, Size: 7, Object: payload}}},
		Manifest{Root: payload, Subtrees: []digest.Digest{payload}},
		Layer{Manifest: payload},
		Platform{Stack: []digest.Digest{payload, digest.FromBytes([]byte("other"))}},
	}

	for _, obj := range objs {
		b, err := EncodeObject(obj)
		if err != nil {
			t.Fatalf("encode %T: %v", obj, err)
		}
		want := digest.FromBytes(b)
		got, err := DigestObject(obj)
		if err != nil {
			t.Fatalf("digest %T: %v", obj, err)
		}
		if got != want {
			t.Fatalf("%T: digest mismatch", obj)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d1 := digest.FromBytes([]byte("one"))
	d2 := digest.FromBytes([]byte("two"))

	cases := []Object{
		Blob{Payload: d1, Size: 42},
		Tree{Entries: []Entry{
			{Name: "b", Kind: EntryTree, Mode: 0o755, Size: 0, Object: d2},
			{Name: "a", Kind: EntryBlob, Mode: 0o644, Size: 5, Object: d1},
		}},
		Manifest{Root: d1, Subtrees: []digest.Digest{d2, d1}},
		Layer{Manifest: d1},
		Platform{Stack: []digest.Digest{d1, d2}},
	}

	for _, obj := range cases {
		b, err := EncodeObject(obj)
		if err != nil {
			t.Fatalf("encode %T: %v", obj, err)
		}
		decoded, err := DecodeObject(b)
		if err != nil {
			t.Fatalf("decode %T: %v", obj, err)
		}
		b2, err := EncodeObject(decoded)
		if err != nil {
			t.Fatalf("re-encode %T: %v", obj, err)
		}
		if !bytes.Equal(b, b2) {
			t.Fatalf("%T: round trip produced different bytes", obj)
		}
	}
}

func TestTreeEntriesCanonicallySorted(t *testing.T) {
	d := digest.FromBytes([]byte("x"))
	tr, err := NewTree([]Entry{
		{Name: "zeta", Kind: EntryBlob, Object: d},
		{Name: "alpha", Kind: EntryBlob, Object: d},
		{Name: "mid", Kind: EntryBlob, Object: d},
	})
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, len(tr.Entries))
	for i, e := range tr.Entries {
		names[i] = e.Name
	}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("entries not sorted: %v", names)
		}
	}
}

func TestNewTreeRejectsDuplicateNames(t *testing.T) {
	d := digest.FromBytes([]byte("x"))
	_, err := NewTree([]Entry{
		{Name: "dup", Kind: EntryBlob, Object: d},
		{Name: "dup", Kind: EntryBlob, Object: d},
	})
	if err == nil {
		t.Fatal("expected error for duplicate entry names")
	}
}

func TestManifestDigestOrderIndependent(t *testing.T) {
	d1 := digest.FromBytes([]byte("sub1"))
	d2 := digest.FromBytes([]byte("sub2"))
	root := digest.FromBytes([]byte("root"))

	m1 := Manifest{Root: root, Subtrees: []digest.Digest{d1, d2}}
	m2 := Manifest{Root: root, Subtrees: []digest.Digest{d2, d1}}

	g1, err := DigestObject(m1)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := DigestObject(m2)
	if err != nil {
		t.Fatal(err)
	}
	if g1 != g2 {
		t.Fatal("manifest digest should not depend on subtree insertion order")
	}
}

func TestDecodeObjectRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeObject([]byte{0xFF}); err == nil {
		t.Fatal("expected error for unknown kind tag")
	}
}

func TestDecodeObjectRejectsEmpty(t *testing.T) {
	if _, err := DecodeObject(nil); err == nil {
		t.Fatal("expected error for empty encoding")
	}
}

// Golden vectors: pin the exact wire bytes for the simplest instance of
// each kind so any accidental drift in the canonical encoding is caught.
func TestGoldenVectors(t *testing.T) {
	var zero digest.Digest

	blob := Blob{Payload: zero, Size: 0}
	wantBlob := append([]byte{byte(KindBlob)}, make([]byte, digest.Size+8)...)
	gotBlob, err := EncodeObject(blob)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotBlob, wantBlob) {
		t.Fatalf("blob golden vector mismatch:\ngot  %x\nwant %x", gotBlob, wantBlob)
	}

	empty := Tree{}
	wantTree := []byte{byte(KindTree), 0, 0, 0, 0, 0, 0, 0, 0}
	gotTree, err := EncodeObject(empty)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotTree, wantTree) {
		t.Fatalf("empty tree golden vector mismatch:\ngot  %x\nwant %x", gotTree, wantTree)
	}

	layer := Layer{Manifest: zero}
	wantLayer := append([]byte{byte(KindLayer)}, make([]byte, digest.Size)...)
	gotLayer, err := EncodeObject(layer)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotLayer, wantLayer) {
		t.Fatalf("layer golden vector mismatch:\ngot  %x\nwant %x", gotLayer, wantLayer)
	}

	platform := Platform{}
	wantPlatform := []byte{byte(KindPlatform), 0, 0, 0, 0, 0, 0, 0, 0}
	gotPlatform, err := EncodeObject(platform)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotPlatform, wantPlatform) {
		t.Fatalf("empty platform golden vector mismatch:\ngot  %x\nwant %x", gotPlatform, wantPlatform)
	}
}
