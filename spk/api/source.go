package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalSource packages files from a local directory, relative to the spec
// file that declares it.
type LocalSource struct {
	Path      string
	SubdirVal string
}

func (s LocalSource) Subdir() string { return s.SubdirVal }

// GitSource packages files checked out from a git repository at a given
// ref (branch, tag, or commit).
type GitSource struct {
	Git       string
	Ref       string
	SubdirVal string
}

func (s GitSource) Subdir() string { return s.SubdirVal }

// TarSource packages files extracted from a tar archive, local or remote.
type TarSource struct {
	Tar       string
	SubdirVal string
}

func (s TarSource) Subdir() string { return s.SubdirVal }

// SourceSpec describes where a package's sources come from. Subdir names
// where, relative to the build's assembled source directory, this
// source's files land. Actually invoking rsync/git/tar to collect the
// files is an external adapter's responsibility; SourceSpec only carries
// the data needed to describe and validate that collection.
type SourceSpec interface {
	Subdir() string
}

// Source is a tagged union over the SourceSpec variants, exactly one of
// which is set. It decodes from YAML entries keyed by "path", "git", or
// "tar", replacing the abstract-base-class dispatch of the original
// implementation with a sum type resolved during parse.
type Source struct {
	Local *LocalSource
	Git   *GitSource
	Tar   *TarSource
}

// Spec returns the concrete SourceSpec this Source wraps.
func (s Source) Spec() SourceSpec {
	switch {
	case s.Local != nil:
		return *s.Local
	case s.Git != nil:
		return *s.Git
	case s.Tar != nil:
		return *s.Tar
	default:
		return nil
	}
}

type rawSource struct {
	Path   string `yaml:"path"`
	Git    string `yaml:"git"`
	Ref    string `yaml:"ref"`
	Tar    string `yaml:"tar"`
	Subdir string `yaml:"subdir"`
}

// UnmarshalYAML dispatches on which of "path", "git", "tar" is present.
func (s *Source) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw rawSource
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch {
	case raw.Path != "":
		s.Local = &LocalSource{Path: raw.Path, SubdirVal: raw.Subdir}
		s.Git, s.Tar = nil, nil
	case raw.Git != "":
		s.Git = &GitSource{Git: raw.Git, Ref: raw.Ref, SubdirVal: raw.Subdir}
		s.Local, s.Tar = nil, nil
	case raw.Tar != "":
		s.Tar = &TarSource{Tar: raw.Tar, SubdirVal: raw.Subdir}
		s.Local, s.Git = nil, nil
	default:
		return fmt.Errorf("api: cannot determine type of source specifier: expected one of \"path\", \"git\", \"tar\"")
	}
	return nil
}

// CollectionError reports that a source collection step produced an
// unusable result: nothing was collected, or files landed outside the
// directory they were collected into.
type CollectionError struct {
	Message string
	Dir     string
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("failed to collect sources into %s: %s", e.Dir, e.Message)
}

// ValidateCollection checks the result of an external source collector:
// dir must exist, contain at least one entry, and every entry must
// resolve to a path inside dir (guarding against collectors that follow
// symlinks or archive entries outside their root).
func ValidateCollection(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &CollectionError{Message: err.Error(), Dir: dir}
	}
	if len(entries) == 0 {
		return &CollectionError{Message: "no files were collected", Dir: dir}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return &CollectionError{Message: err.Error(), Dir: dir}
	}
	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return &CollectionError{Message: err.Error(), Dir: dir}
	}

	var walk func(path string) error
	walk = func(path string) error {
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		rel, err := filepath.Rel(realDir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return &CollectionError{Message: fmt.Sprintf("collected path %q escapes %q", path, realDir), Dir: dir}
		}
		return nil
	}

	for _, e := range entries {
		if err := walk(filepath.Join(realDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
