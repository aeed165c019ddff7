package api

// BuildSpec describes how a package is built: its declared options, the
// build script, and any variants (pinned option combinations the package
// is known to build under).
type BuildSpec struct {
	Options  []Request   `yaml:"options,omitempty"`
	Script   []string    `yaml:"script,omitempty"`
	Variants []OptionMap `yaml:"variants,omitempty"`
}

// InstallSpec describes what an installed instance of the package needs
// and provides: runtime requirements, embedded packages that ship
// alongside it without a separate build, and named components that can be
// requested individually.
type InstallSpec struct {
	Requirements []Request `yaml:"requirements,omitempty"`
	Embedded     []Ident   `yaml:"embedded,omitempty"`
	Components   []string  `yaml:"components,omitempty"`
}

// Spec is a package's complete metadata: its identity, where its sources
// come from, how it is built, and what it requires and provides once
// installed. A Spec whose Ident carries a concrete Build can be
// instantiated directly; a Spec with only a Version describes a family
// that must still be solved against a set of options.
type Spec struct {
	Pkg     Ident       `yaml:"pkg"`
	Sources []Source    `yaml:"sources,omitempty"`
	Build   BuildSpec   `yaml:"build,omitempty"`
	Install InstallSpec `yaml:"install,omitempty"`
}

// IsFamily reports whether s describes an unbuilt family (no concrete
// Build attached to its Ident).
func (s Spec) IsFamily() bool {
	return s.Pkg.Build == nil
}

// DigestBuildOptions returns the subset of opts that actually affect this
// package's build digest: its declared build options, by name.
func (s Spec) DigestBuildOptions(opts OptionMap) OptionMap {
	names := make([]string, 0, len(s.Build.Options))
	for _, r := range s.Build.Options {
		if r.Var != nil {
			names = append(names, r.Var.Name)
		}
	}
	return opts.Subset(names)
}

// EmbeddedRequests returns one PkgRequest per embedded package, each
// pinned to an exact version and marked IncludeAlways: embedded packages
// are never optional once their parent spec is resolved.
func (s Spec) EmbeddedRequests() []PkgRequest {
	out := make([]PkgRequest, 0, len(s.Install.Embedded))
	for _, ident := range s.Install.Embedded {
		r, _ := ParseVersionRange("=" + ident.Version.String())
		out = append(out, PkgRequest{
			Name:      ident.Name,
			Range:     r,
			Build:     ident.Build,
			Inclusion: IncludeAlways,
		})
	}
	return out
}

// HasComponent reports whether name is one of s's declared components.
func (s Spec) HasComponent(name string) bool {
	for _, c := range s.Install.Components {
		if c == name {
			return true
		}
	}
	return false
}
