package solve

import (
	"context"

	"github.com/spkfs/spfs/spk/api"
)

// Solver resolves a set of package requests against a fixed list of
// repositories by depth-first search with backtracking: at each node it
// tries every candidate build of the next unresolved package in turn,
// recursing into the first that doesn't immediately conflict, and
// retreating to try the next candidate when a branch turns out
// infeasible.
type Solver struct {
	repos []Repository
	tree  *DecisionTree
}

// NewSolver returns a Solver that searches repos, in the order given, for
// every package name it needs to resolve.
func NewSolver(repos []Repository) *Solver {
	return &Solver{repos: repos, tree: NewDecisionTree()}
}

// Tree returns the decision tree built by the most recent call to Solve,
// for diagnosis (GetErrorChain) regardless of whether it succeeded.
func (s *Solver) Tree() *DecisionTree { return s.tree }

// Solve resolves initial against s's repositories. On success it returns
// the full Solution accumulated along the winning branch. On failure it
// returns nil and an error; the caller can call s.Tree().GetErrorChain()
// for the sequence of decisions that led to the failure. If ctx is
// cancelled mid-search, the in-progress Decision is discarded and no
// partial Solution is ever returned.
func (s *Solver) Solve(ctx context.Context, initial []api.Request) (*Solution, error) {
	s.tree = NewDecisionTree()
	root := s.tree.Root()
	for _, req := range initial {
		root.AddRequest(req)
	}

	leaf, err := s.resolve(ctx, root)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		chain := s.tree.GetErrorChain()
		if len(chain) > 0 {
			return nil, chain[0]
		}
		if rootErr := root.Error(); rootErr != nil {
			return nil, rootErr
		}
		return nil, &SolverError{Message: "failed to resolve requests"}
	}
	return leaf.GetCurrentSolution(), nil
}

// resolve searches decision's subtree for a leaf with no remaining
// required requests, returning it on success. A nil, nil result means
// this subtree is a dead end; the caller should try its next candidate
// (or, if decision is the root, report failure).
func (s *Solver) resolve(ctx context.Context, decision *Decision) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next, err := decision.NextRequest()
	if err != nil {
		if conflict, ok := err.(*api.ConflictingRequestsError); ok {
			decision.SetError(conflict)
			return nil, nil
		}
		return nil, err
	}
	if next == nil {
		return decision, nil
	}

	it := decision.GetIterator(next.Name)
	if it == nil {
		it, err = NewPackageIterator(next.Name, s.repos)
		if err != nil {
			return nil, err
		}
	}
	decision.SetIterator(next.Name, it)

	history := make(map[string]string)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		spec, repo, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		if next.Prerelease == api.DenyPrereleases && spec.Pkg.Version.Pre != "" {
			history[spec.Pkg.Version.String()] = "prerelease excluded by request"
			continue
		}
		if !next.Range.Satisfies(spec.Pkg.Version) {
			history[spec.Pkg.Version.String()] = "does not satisfy requested range " + next.Range.String()
			continue
		}
		if next.Build != nil && (spec.Pkg.Build == nil || *spec.Pkg.Build != *next.Build) {
			history[spec.Pkg.Version.String()] = "does not match requested build " + next.Build.String()
			continue
		}
		if conflict, ok := incompatibleOption(spec, decision.PinnedOptions()); ok {
			history[spec.Pkg.Version.String()] = conflict
			continue
		}

		child := decision.AddBranch()
		for _, req := range spec.Install.Requirements {
			child.AddRequest(req)
		}

		if err := child.SetResolved(spec, PackageSource{Repository: repo}); err != nil {
			child.SetError(err)
			history[spec.Pkg.Version.String()] = err.Error()
			continue
		}

		leaf, err := s.resolve(ctx, child)
		if err != nil {
			return nil, err
		}
		if leaf != nil {
			return leaf, nil
		}
		if childErr := child.Error(); childErr != nil {
			history[spec.Pkg.Version.String()] = childErr.Error()
		}
	}

	decision.SetError(&UnresolvedPackageError{Name: next.Name, History: history})
	return nil, nil
}

// incompatibleOption reports whether spec declares a build option whose
// default value conflicts with a value already pinned elsewhere in the
// tree by a VarRequest, and if so a message describing the conflict.
func incompatibleOption(spec api.Spec, pinned api.OptionMap) (string, bool) {
	for _, req := range spec.Build.Options {
		if req.Var == nil {
			continue
		}
		want, ok := pinned[req.Var.Name]
		if !ok || want == req.Var.Value {
			continue
		}
		return "option " + req.Var.Name + "=" + req.Var.Value + " conflicts with requested " + want, true
	}
	return "", false
}
