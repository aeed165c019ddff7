// Package graph implements the SPFS object graph: a Merkle DAG of
// immutable, content-addressed objects (blobs, trees, manifests, layers,
// platforms) plus a Database that stores and resolves them.
//
// Canonical encoding is defined once here and must never change shape
// without adding a new kind tag (additive-only, see spec.md §6): any drift
// breaks every digest computed by an existing repository.
package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/spkfs/spfs/pkg/digest"
)

// ObjectKind discriminates the five object variants. The numeric values
// are part of the on-disk wire format and must never be renumbered; new
// kinds are appended.
type ObjectKind uint8

const (
	KindBlob ObjectKind = iota + 1
	KindTree
	KindManifest
	KindLayer
	KindPlatform
)

func (k ObjectKind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindManifest:
		return "manifest"
	case KindLayer:
		return "layer"
	case KindPlatform:
		return "platform"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// EntryKind discriminates the three kinds of Tree entry.
type EntryKind uint8

const (
	EntryTree EntryKind = iota + 1
	EntryBlob
	EntryMask
)

func (k EntryKind) String() string {
	switch k {
	case EntryTree:
		return "tree"
	case EntryBlob:
		return "blob"
	case EntryMask:
		return "mask"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Object is implemented by every object graph variant. Encode produces the
// variant's canonical payload bytes (not including the kind tag byte -
// EncodeObject prepends that uniformly).
type Object interface {
	Kind() ObjectKind
	Encode(w io.Writer) error
}

// Blob is a metadata-only reference to a payload stored in the payload
// store: (payload_digest, size).
type Blob struct {
	Payload digest.Digest
	Size    int64
}

func (Blob) Kind() ObjectKind { return KindBlob }

func (b Blob) Encode(w io.Writer) error {
	if _, err := w.Write(b.Payload[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, uint64(b.Size))
}

func decodeBlob(r io.Reader) (Blob, error) {
	var b Blob
	if _, err := io.ReadFull(r, b.Payload[:]); err != nil {
		return Blob{}, err
	}
	var size uint64
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return Blob{}, err
	}
	b.Size = int64(size)
	return b, nil
}

// Entry is one named child of a Tree.
type Entry struct {
	Name   string
	Kind   EntryKind
	Mode   uint32
	Size   int64
	Object digest.Digest
}

func encodeEntry(w io.Writer, e Entry) error {
	if _, err := w.Write([]byte{byte(e.Kind)}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, e.Mode); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(e.Size)); err != nil {
		return err
	}
	if _, err := w.Write(e.Object[:]); err != nil {
		return err
	}
	name := []byte(e.Name)
	if len(name) > 0xFFFF {
		return fmt.Errorf("graph: entry name %q exceeds maximum length", e.Name)
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(name))); err != nil {
		return err
	}
	_, err := w.Write(name)
	return err
}

func decodeEntry(r io.Reader) (Entry, error) {
	var e Entry
	kindByte := make([]byte, 1)
	if _, err := io.ReadFull(r, kindByte); err != nil {
		return Entry{}, err
	}
	e.Kind = EntryKind(kindByte[0])
	if err := binary.Read(r, binary.BigEndian, &e.Mode); err != nil {
		return Entry{}, err
	}
	var size uint64
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return Entry{}, err
	}
	e.Size = int64(size)
	if _, err := io.ReadFull(r, e.Object[:]); err != nil {
		return Entry{}, err
	}
	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return Entry{}, err
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Entry{}, err
	}
	e.Name = string(name)
	return e, nil
}

// Tree is an ordered list of entries, sorted lexicographically by name with
// unique names (spec.md §3 invariant).
type Tree struct {
	Entries []Entry
}

func (Tree) Kind() ObjectKind { return KindTree }

// SortEntries sorts t.Entries by name in place. NewTree calls this
// automatically; exported so callers building a Tree incrementally can
// re-sort before Encode.
func (t *Tree) SortEntries() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Name < t.Entries[j].Name
	})
}

// NewTree returns a Tree with entries sorted by name, validating that
// names are unique.
func NewTree(entries []Entry) (Tree, error) {
	t := Tree{Entries: append([]Entry(nil), entries...)}
	t.SortEntries()
	for i := 1; i < len(t.Entries); i++ {
		if t.Entries[i].Name == t.Entries[i-1].Name {
			return Tree{}, fmt.Errorf("graph: duplicate entry name %q in tree", t.Entries[i].Name)
		}
	}
	return t, nil
}

// Get returns the entry with the given name and whether it was found.
func (t Tree) Get(name string) (Entry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i], true
	}
	return Entry{}, false
}

func (t Tree) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint64(len(t.Entries))); err != nil {
		return err
	}
	for _, e := range t.Entries {
		if err := encodeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func decodeTree(r io.Reader) (Tree, error) {
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Tree{}, err
	}
	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := decodeEntry(r)
		if err != nil {
			return Tree{}, err
		}
		entries = append(entries, e)
	}
	return Tree{Entries: entries}, nil
}

// Manifest is a root tree plus an interned set of subtrees, forming a
// Merkle tree over a filesystem snapshot. Interned subtrees let a
// committer avoid re-writing an identical subtree digest for every parent
// that references it; render/diff walk from Root, resolving subtree
// digests against the Subtrees set (or the Database, if a digest isn't
// interned locally).
type Manifest struct {
	Root     digest.Digest
	Subtrees []digest.Digest
}

func (Manifest) Kind() ObjectKind { return KindManifest }

func (m Manifest) Encode(w io.Writer) error {
	if _, err := w.Write(m.Root[:]); err != nil {
		return err
	}
	sorted := append([]digest.Digest(nil), m.Subtrees...)
	sort.Slice(sorted, func(i, j int) bool { return digest.Compare(sorted[i], sorted[j]) < 0 })
	if err := binary.Write(w, binary.BigEndian, uint64(len(sorted))); err != nil {
		return err
	}
	for _, d := range sorted {
		if _, err := w.Write(d[:]); err != nil {
			return err
		}
	}
	return nil
}

func decodeManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if _, err := io.ReadFull(r, m.Root[:]); err != nil {
		return Manifest{}, err
	}
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Manifest{}, err
	}
	m.Subtrees = make([]digest.Digest, 0, count)
	for i := uint64(0); i < count; i++ {
		var d digest.Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return Manifest{}, err
		}
		m.Subtrees = append(m.Subtrees, d)
	}
	return m, nil
}

// Layer wraps one Manifest; the unit of deduplicable filesystem change.
type Layer struct {
	Manifest digest.Digest
}

func (Layer) Kind() ObjectKind { return KindLayer }

func (l Layer) Encode(w io.Writer) error {
	_, err := w.Write(l.Manifest[:])
	return err
}

func decodeLayer(r io.Reader) (Layer, error) {
	var l Layer
	_, err := io.ReadFull(r, l.Manifest[:])
	return l, err
}

// Platform is an ordered tuple of layer digests (the "stack"). Order is
// semantically meaningful: later entries override earlier ones.
type Platform struct {
	Stack []digest.Digest
}

func (Platform) Kind() ObjectKind { return KindPlatform }

func (p Platform) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint64(len(p.Stack))); err != nil {
		return err
	}
	for _, d := range p.Stack {
		if _, err := w.Write(d[:]); err != nil {
			return err
		}
	}
	return nil
}

func decodePlatform(r io.Reader) (Platform, error) {
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Platform{}, err
	}
	p := Platform{Stack: make([]digest.Digest, 0, count)}
	for i := uint64(0); i < count; i++ {
		var d digest.Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return Platform{}, err
		}
		p.Stack = append(p.Stack, d)
	}
	return p, nil
}

// EncodeObject returns the canonical byte form of obj: a one-byte kind tag
// followed by the variant's own encoding.
func EncodeObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(obj.Kind()))
	if err := obj.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DigestObject returns the content address of obj: the digest of its
// canonical encoding (spec.md §3 invariant: stored digest == digest(encode(o))).
func DigestObject(obj Object) (digest.Digest, error) {
	b, err := EncodeObject(obj)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.FromBytes(b), nil
}

// DecodeObject parses the canonical byte form produced by EncodeObject.
func DecodeObject(b []byte) (Object, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("graph: empty object encoding")
	}
	r := bytes.NewReader(b[1:])
	switch ObjectKind(b[0]) {
	case KindBlob:
		return decodeBlob(r)
	case KindTree:
		return decodeTree(r)
	case KindManifest:
		return decodeManifest(r)
	case KindLayer:
		return decodeLayer(r)
	case KindPlatform:
		return decodePlatform(r)
	default:
		return nil, fmt.Errorf("graph: unknown object kind tag %d", b[0])
	}
}
