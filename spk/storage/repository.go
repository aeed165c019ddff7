// Package storage adapts a single pkg/storage.Repository into an SPK
// package repository: specs and builds tagged into the same
// content-addressed tag namespace SPFS already provides, rather than a
// second storage engine. Grounded on
// _examples/original_source/spk/storage/_repository.py's abstract
// Repository.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/spkfs/spfs/pkg/digest"
	"github.com/spkfs/spfs/pkg/graph"
	pkgstorage "github.com/spkfs/spfs/pkg/storage"
	"github.com/spkfs/spfs/spk/api"
)

const (
	specTagRoot    = "spk/spec"
	packageTagRoot = "spk/pkg"
	specFileName   = "spec.yaml"
)

// VersionExistsError is returned by PublishSpec when a spec already
// exists at the given package's version.
type VersionExistsError struct {
	Pkg api.Ident
}

func (e VersionExistsError) Error() string {
	return fmt.Sprintf("spk: package version already exists: %s", e.Pkg)
}

// PackageNotFoundError is returned when a named package, version or
// build has no corresponding entry in the repository.
type PackageNotFoundError struct {
	Pkg api.Ident
}

func (e PackageNotFoundError) Error() string {
	return fmt.Sprintf("spk: package not found: %s", e.Pkg)
}

// Repository is a thin SPK-specific facade over an SPFS repository: every
// published spec and build is just another tagged object in the same
// database, under the "spk/spec/..." and "spk/pkg/..." tag namespaces.
// It implements spk/solve.Repository directly.
type Repository struct {
	spfs *pkgstorage.Repository
}

// NewRepository wraps spfs as an SPK package repository.
func NewRepository(spfs *pkgstorage.Repository) *Repository {
	return &Repository{spfs: spfs}
}

func specTagName(name, version string) string {
	return strings.Join([]string{specTagRoot, name, version}, "/")
}

func packageTagName(ident api.Ident) string {
	return strings.Join([]string{packageTagRoot, ident.Name, ident.Version.String(), ident.Build.String()}, "/")
}

// ListPackages returns the set of package names with at least one
// published spec.
func (r *Repository) ListPackages(ctx context.Context) ([]string, error) {
	tags, err := r.spfs.Tags().LsTags(ctx, specTagRoot+"/")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, tag := range tags {
		rest := strings.TrimPrefix(tag, specTagRoot+"/")
		name := rest[:strings.IndexByte(rest, '/')]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// ListPackageVersions returns the set of versions published for name.
func (r *Repository) ListPackageVersions(ctx context.Context, name string) ([]api.Version, error) {
	prefix := specTagRoot + "/" + name + "/"
	tags, err := r.spfs.Tags().LsTags(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var versions []api.Version
	for _, tag := range tags {
		raw := strings.TrimPrefix(tag, prefix)
		v, err := api.ParseVersion(raw)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Versions implements spk/solve.Repository, returning the published
// versions of name in tag listing order, unsorted; NewPackageIterator
// sorts them into descending order itself.
func (r *Repository) Versions(name string) ([]api.Version, error) {
	return r.ListPackageVersions(context.Background(), name)
}

// ListPackageBuilds returns every build published for pkg's name and
// version, ignoring any build component pkg itself carries.
func (r *Repository) ListPackageBuilds(ctx context.Context, pkg api.Ident) ([]api.Ident, error) {
	prefix := fmt.Sprintf("%s/%s/%s/", packageTagRoot, pkg.Name, pkg.Version.String())
	tags, err := r.spfs.Tags().LsTags(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var builds []api.Ident
	for _, tag := range tags {
		raw := strings.TrimPrefix(tag, prefix)
		build, err := api.ParseBuild(raw)
		if err != nil {
			continue
		}
		builds = append(builds, pkg.WithBuild(build))
	}
	return builds, nil
}

// ReadSpec reads the published spec for pkg's name and version, ignoring
// any build component pkg carries (a spec describes every build of one
// version).
func (r *Repository) ReadSpec(pkg api.Ident) (api.Spec, error) {
	ctx := context.Background()
	tagName := specTagName(pkg.Name, pkg.Version.String())

	d, err := r.spfs.ReadRef(ctx, tagName)
	if isUnknownRef(err) {
		return api.Spec{}, PackageNotFoundError{Pkg: pkg}
	}
	if err != nil {
		return api.Spec{}, err
	}

	raw, err := r.readSpecFile(ctx, d)
	if err != nil {
		return api.Spec{}, err
	}

	var spec api.Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return api.Spec{}, fmt.Errorf("spk: corrupt spec for %s: %w", pkg, err)
	}
	return spec, nil
}

func (r *Repository) readSpecFile(ctx context.Context, manifestDigest digest.Digest) ([]byte, error) {
	obj, err := r.spfs.Database().ReadObject(ctx, manifestDigest)
	if err != nil {
		return nil, err
	}
	manifest, ok := obj.(graph.Manifest)
	if !ok {
		return nil, fmt.Errorf("spk: object %s is not a spec manifest", manifestDigest)
	}

	treeObj, err := r.spfs.Database().ReadObject(ctx, manifest.Root)
	if err != nil {
		return nil, err
	}
	tree, ok := treeObj.(graph.Tree)
	if !ok {
		return nil, fmt.Errorf("spk: object %s is not a tree", manifest.Root)
	}

	entry, ok := tree.Get(specFileName)
	if !ok {
		return nil, fmt.Errorf("spk: spec manifest %s has no %s entry", manifestDigest, specFileName)
	}
	blobObj, err := r.spfs.Database().ReadObject(ctx, entry.Object)
	if err != nil {
		return nil, err
	}
	blob, ok := blobObj.(graph.Blob)
	if !ok {
		return nil, fmt.Errorf("spk: object %s is not a blob", entry.Object)
	}

	rc, err := r.spfs.Payloads().OpenPayload(ctx, blob.Payload)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// GetPackage identifies the SPFS layer digest published for a built
// package.
func (r *Repository) GetPackage(pkg api.Ident) (digest.Digest, error) {
	if pkg.Build == nil {
		return digest.Digest{}, fmt.Errorf("spk: %s has no build to resolve", pkg)
	}
	ctx := context.Background()
	d, err := r.spfs.ReadRef(ctx, packageTagName(pkg))
	if isUnknownRef(err) {
		return digest.Digest{}, PackageNotFoundError{Pkg: pkg}
	}
	return d, err
}

// PublishSpec writes spec as the published spec for its version,
// refusing to clobber an existing publication.
func (r *Repository) PublishSpec(spec api.Spec) error {
	ctx := context.Background()
	tagName := specTagName(spec.Pkg.Name, spec.Pkg.Version.String())

	exists, err := r.spfs.HasRef(ctx, tagName)
	if err != nil {
		return err
	}
	if exists {
		return VersionExistsError{Pkg: spec.Pkg}
	}
	return r.writeSpec(ctx, tagName, spec)
}

// ForcePublishSpec writes spec as the published spec for its version,
// clobbering any existing publication.
func (r *Repository) ForcePublishSpec(spec api.Spec) error {
	ctx := context.Background()
	tagName := specTagName(spec.Pkg.Name, spec.Pkg.Version.String())
	return r.writeSpec(ctx, tagName, spec)
}

func (r *Repository) writeSpec(ctx context.Context, tagName string, spec api.Spec) error {
	raw, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}

	payloadDigest, size, err := r.spfs.Payloads().WritePayload(ctx, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	blobDigest, err := r.spfs.Database().WriteObject(ctx, graph.Blob{Payload: payloadDigest, Size: size})
	if err != nil {
		return err
	}
	tree, err := graph.NewTree([]graph.Entry{{
		Name:   specFileName,
		Kind:   graph.EntryBlob,
		Mode:   0644,
		Size:   size,
		Object: blobDigest,
	}})
	if err != nil {
		return err
	}
	treeDigest, err := r.spfs.Database().WriteObject(ctx, tree)
	if err != nil {
		return err
	}
	manifestDigest, err := r.spfs.Database().WriteObject(ctx, graph.Manifest{Root: treeDigest})
	if err != nil {
		return err
	}

	_, err = r.spfs.PushTag(ctx, tagName, manifestDigest)
	return err
}

// PublishPackage tags d, an already-published SPFS layer digest, as the
// build identified by pkg.
func (r *Repository) PublishPackage(pkg api.Ident, d digest.Digest) error {
	if pkg.Build == nil {
		return fmt.Errorf("spk: cannot publish %s without a build", pkg)
	}
	ctx := context.Background()
	_, err := r.spfs.PushTag(ctx, packageTagName(pkg), d)
	return err
}

func isUnknownRef(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case pkgstorage.UnknownTagError, pkgstorage.InvalidRefError,
		graph.UnknownReferenceError, graph.AmbiguousReferenceError:
		return true
	default:
		return false
	}
}
