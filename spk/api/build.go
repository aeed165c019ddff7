package api

import "fmt"

// BuildKind discriminates the three forms a Build identifier can take.
type BuildKind int

const (
	// BuildSrc identifies the source build: the package's unmodified
	// sources, prior to any variant-specific compilation.
	BuildSrc BuildKind = iota
	// BuildEmbedded identifies a virtual build injected by a parent
	// spec's embedded package declaration; it has no sources of its own.
	BuildEmbedded
	// BuildDigest identifies a concrete built instantiation, keyed by
	// the 8-character OptionMap digest that produced it.
	BuildDigest
)

const (
	srcBuildName      = "src"
	embeddedBuildName = "embedded"
)

// Build is the identifier of one built instantiation of a Spec.
type Build struct {
	Kind   BuildKind
	Digest string // only meaningful when Kind == BuildDigest
}

// SrcBuild is the distinguished source build identifier.
var SrcBuild = Build{Kind: BuildSrc}

// EmbeddedBuild is the distinguished embedded (virtual) build identifier.
var EmbeddedBuild = Build{Kind: BuildEmbedded}

// DigestBuild wraps an OptionMap digest (see OptionMap.Digest) as a
// concrete Build identifier.
func DigestBuild(digest string) Build {
	return Build{Kind: BuildDigest, Digest: digest}
}

// ParseBuild parses the text form of a Build: "src", "embedded", or an
// 8-character build digest.
func ParseBuild(s string) (Build, error) {
	switch s {
	case srcBuildName:
		return SrcBuild, nil
	case embeddedBuildName:
		return EmbeddedBuild, nil
	default:
		if len(s) != optionMapDigestSize {
			return Build{}, fmt.Errorf("api: invalid build %q: expected %q, %q, or an %d-character digest", s, srcBuildName, embeddedBuildName, optionMapDigestSize)
		}
		return DigestBuild(s), nil
	}
}

func (b Build) String() string {
	switch b.Kind {
	case BuildSrc:
		return srcBuildName
	case BuildEmbedded:
		return embeddedBuildName
	default:
		return b.Digest
	}
}

// IsSource reports whether b is the source build.
func (b Build) IsSource() bool { return b.Kind == BuildSrc }

// IsEmbedded reports whether b is a virtual embedded build.
func (b Build) IsEmbedded() bool { return b.Kind == BuildEmbedded }
