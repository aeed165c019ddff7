package api

import (
	"crypto/sha1"
	"encoding/base32"
	"os"
	"runtime"
	"sort"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// optionMapDigestSize is the number of base32 characters an OptionMap
// digest is truncated to: enough to make collisions unlikely within a
// single package name's build namespace without growing the build
// directory names unreasonably.
const optionMapDigestSize = 8

// OptionMap is a name to value map for package build options. Iteration
// order is never relied upon; Digest always sorts keys first so two
// OptionMaps built by inserting the same pairs in different orders
// produce the same digest.
type OptionMap map[string]string

// Digest returns the first 8 base32 characters of the SHA1 digest of
// the map's "name=value\0" pairs in sorted-key order.
func (m OptionMap) Digest() string {
	h := sha1.New()
	for _, k := range m.sortedKeys() {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write([]byte(m[k]))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	encoded := base32.StdEncoding.EncodeToString(sum)
	return encoded[:optionMapDigestSize]
}

func (m OptionMap) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToEnvironment returns base (or the current process environment, if
// base is nil) with one SPK_OPT_<NAME>=value entry added per option.
func (m OptionMap) ToEnvironment(base []string) []string {
	if base == nil {
		base = os.Environ()
	}
	out := append([]string{}, base...)
	for _, k := range m.sortedKeys() {
		out = append(out, "SPK_OPT_"+k+"="+m[k])
	}
	return out
}

// Clone returns a shallow copy of m.
func (m OptionMap) Clone() OptionMap {
	out := make(OptionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Update overlays other's entries onto a clone of m, other winning on
// key collisions, and returns the result.
func (m OptionMap) Update(other OptionMap) OptionMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Subset returns a new OptionMap containing only the given names, in
// the same order relationship implied by the build digest's use of only
// the options that actually affect a given package's build.
func (m OptionMap) Subset(names []string) OptionMap {
	out := make(OptionMap, len(names))
	for _, n := range names {
		if v, ok := m[n]; ok {
			out[n] = v
		}
	}
	return out
}

// HostOptionMap detects the default build options for the current host:
// "os" and "arch", reusing OCI's own Platform struct for the detected
// values instead of a hand-rolled pair.
func HostOptionMap() OptionMap {
	p := v1.Platform{OS: runtime.GOOS, Architecture: runtime.GOARCH}
	return OptionMap{
		"os":   p.OS,
		"arch": p.Architecture,
	}
}
