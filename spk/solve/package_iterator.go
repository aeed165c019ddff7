package solve

import (
	"sort"

	"github.com/spkfs/spfs/spk/api"
)

// PackageIterator yields candidate Specs, each with the Repository it came
// from, for one package name in descending version order across a set of
// repositories. It is
// cheap to clone so a child Decision can inherit its parent's cursor
// position without disturbing the parent's iteration.
type PackageIterator interface {
	// Next returns the next candidate and the repository it came from,
	// or ok=false once exhausted.
	Next() (api.Spec, Repository, bool, error)
	// Clone returns an independent copy positioned at the same cursor.
	Clone() PackageIterator
}

type candidate struct {
	repo    Repository
	ident   api.Ident
}

// repoIterator is the default PackageIterator: it gathers every version
// of name from every repository up front, sorts them descending, and
// walks them one at a time, reading the Spec lazily.
type repoIterator struct {
	name       string
	candidates []candidate
	cursor     int
}

// NewPackageIterator builds an iterator over name across repos.
func NewPackageIterator(name string, repos []Repository) (PackageIterator, error) {
	it := &repoIterator{name: name}
	for _, repo := range repos {
		versions, err := repo.Versions(name)
		if err != nil {
			continue
		}
		for _, v := range versions {
			it.candidates = append(it.candidates, candidate{repo: repo, ident: api.NewIdent(name, v)})
		}
	}
	sort.SliceStable(it.candidates, func(i, j int) bool {
		return api.Compare(it.candidates[j].ident.Version, it.candidates[i].ident.Version) < 0
	})
	return it, nil
}

func (it *repoIterator) Next() (api.Spec, Repository, bool, error) {
	for it.cursor < len(it.candidates) {
		c := it.candidates[it.cursor]
		it.cursor++
		spec, err := c.repo.ReadSpec(c.ident)
		if err != nil {
			continue
		}
		return spec, c.repo, true, nil
	}
	return api.Spec{}, nil, false, nil
}

func (it *repoIterator) Clone() PackageIterator {
	clone := &repoIterator{
		name:       it.name,
		candidates: it.candidates,
		cursor:     it.cursor,
	}
	return clone
}

var _ PackageIterator = (*repoIterator)(nil)
