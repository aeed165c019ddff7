package api

import (
	"fmt"
	"strings"
)

// Ident names one package: its name, version, and (once built) a Build
// identifier. An Ident with a nil Build describes a family (a version of
// a package, not yet instantiated into a concrete build).
type Ident struct {
	Name    string
	Version Version
	Build   *Build
}

// NewIdent returns an unbuilt Ident for name at version.
func NewIdent(name string, version Version) Ident {
	return Ident{Name: name, Version: version}
}

// WithBuild returns a copy of i with build attached.
func (i Ident) WithBuild(build Build) Ident {
	i.Build = &build
	return i
}

// ParseIdent parses "name/version" or "name/version/build".
func ParseIdent(s string) (Ident, error) {
	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return Ident{}, fmt.Errorf("api: invalid ident %q: expected name/version[/build]", s)
	}
	version, err := ParseVersion(parts[1])
	if err != nil {
		return Ident{}, fmt.Errorf("api: invalid ident %q: %w", s, err)
	}
	ident := NewIdent(parts[0], version)
	if len(parts) == 3 {
		build, err := ParseBuild(parts[2])
		if err != nil {
			return Ident{}, fmt.Errorf("api: invalid ident %q: %w", s, err)
		}
		ident.Build = &build
	}
	return ident, nil
}

func (i Ident) String() string {
	s := i.Name + "/" + i.Version.String()
	if i.Build != nil {
		s += "/" + i.Build.String()
	}
	return s
}

// IsSourceBuild reports whether i names a concrete source build.
func (i Ident) IsSourceBuild() bool {
	return i.Build != nil && i.Build.IsSource()
}

// MarshalYAML renders i as its "name/version[/build]" text form, so a
// spec file reads "pkg: python/3.9.0" rather than a nested mapping.
func (i Ident) MarshalYAML() (interface{}, error) {
	return i.String(), nil
}

// UnmarshalYAML parses i from its text form via ParseIdent.
func (i *Ident) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseIdent(raw)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
