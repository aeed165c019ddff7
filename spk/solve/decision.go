package solve

import (
	"sort"

	"github.com/spkfs/spfs/spk/api"
)

// Decision is one node of a solver's search tree: the requests it added,
// the packages it resolved or invalidated, and (if this branch turned
// out infeasible) the error that killed it. Decisions reference their
// parent and children by index into their owning DecisionTree's arena
// rather than by pointer, so the tree can be cloned or truncated without
// untangling cyclic owning references.
type Decision struct {
	tree     *DecisionTree
	index    int
	parent   int // -1 for the root
	children []int

	requests   map[string][]api.Request
	resolved   *Solution
	unresolved map[string]bool
	iterators  map[string]PackageIterator
	err        error
}

func newDecision(tree *DecisionTree, parent int) *Decision {
	return &Decision{
		tree:       tree,
		parent:     parent,
		requests:   make(map[string][]api.Request),
		resolved:   NewSolution(),
		unresolved: make(map[string]bool),
		iterators:  make(map[string]PackageIterator),
	}
}

// Index returns this decision's position in its tree's arena.
func (d *Decision) Index() int { return d.index }

// Parent returns this decision's parent, or nil if d is the root.
func (d *Decision) Parent() *Decision {
	if d.parent < 0 {
		return nil
	}
	return d.tree.at(d.parent)
}

// Children returns this decision's branches, in the order they were added.
func (d *Decision) Children() []*Decision {
	out := make([]*Decision, len(d.children))
	for i, idx := range d.children {
		out[i] = d.tree.at(idx)
	}
	return out
}

// Level returns d's depth in the tree: the number of parents above it.
func (d *Decision) Level() int {
	level := 0
	for p := d.Parent(); p != nil; p = p.Parent() {
		level++
	}
	return level
}

// SetError marks this decision's branch as infeasible.
func (d *Decision) SetError(err error) { d.err = err }

// Error returns the error that killed this branch, if any.
func (d *Decision) Error() error { return d.err }

// AddBranch creates and returns a new child decision of d.
func (d *Decision) AddBranch() *Decision {
	child := newDecision(d.tree, d.index)
	child.index = len(d.tree.arena)
	d.tree.arena = append(d.tree.arena, child)
	d.children = append(d.children, child.index)
	return child
}

// GetIterator returns the iterator for name at this decision's state,
// inheriting (by clone) the nearest ancestor's cursor position the first
// time it's asked for.
func (d *Decision) GetIterator(name string) PackageIterator {
	if it, ok := d.iterators[name]; ok {
		return it
	}
	if p := d.Parent(); p != nil {
		if parentIt := p.GetIterator(name); parentIt != nil {
			clone := parentIt.Clone()
			d.iterators[name] = clone
			return clone
		}
	}
	return nil
}

// SetIterator installs the iterator this decision should use for name.
func (d *Decision) SetIterator(name string, it PackageIterator) {
	d.iterators[name] = it
}

// AddRequest records a new request added by this decision. If the
// package it concerns is already resolved by an ancestor and the new
// request isn't satisfied by that resolution, the package is marked
// unresolved so the solver re-resolves it.
func (d *Decision) AddRequest(req api.Request) {
	name := req.Name()
	if req.Pkg != nil {
		current := d.GetCurrentSolution()
		if _, _, ok := current.Get(name); ok && !current.Satisfies(*req.Pkg) {
			d.SetUnresolved(name)
		}
	}
	d.requests[name] = append(d.requests[name], req)
}

// SetUnresolved marks name as invalidated by this decision: any
// ancestor's resolution of it is ignored from here down, forcing the
// solver to resolve it again.
func (d *Decision) SetUnresolved(name string) {
	d.unresolved[name] = true
}

// ForceSetResolved records spec as resolved by req/source in this
// decision, without going through the embedded-package bookkeeping that
// SetResolved performs.
func (d *Decision) ForceSetResolved(req api.Request, spec api.Spec, source PackageSource) {
	d.resolved.Add(req, spec, source)
	delete(d.unresolved, spec.Pkg.Name)
}

// SetResolved records spec (with a concrete, non-source build) as this
// decision's resolution of the package it names, and injects a request
// plus resolution for each package it embeds.
func (d *Decision) SetResolved(spec api.Spec, source PackageSource) error {
	req, err := d.GetMergedRequest(spec.Pkg.Name)
	if err != nil {
		return err
	}
	if req == nil {
		req = &api.PkgRequest{Name: spec.Pkg.Name, Range: api.AnyVersion}
	}
	d.ForceSetResolved(api.NewPkgRequest(*req), spec, source)

	if spec.Pkg.Build != nil && spec.Pkg.Build.IsSource() {
		return nil
	}
	for _, embedded := range spec.EmbeddedRequests() {
		if err := d.setEmbedded(embedded, spec); err != nil {
			if conflict, ok := err.(*api.ConflictingRequestsError); ok {
				return &api.ConflictingRequestsError{
					Message:  "embedded package '" + embedded.Name + "' is incompatible",
					Requests: conflict.Requests,
				}
			}
			return err
		}
	}
	return nil
}

func (d *Decision) setEmbedded(req api.PkgRequest, embeddedSpec api.Spec) error {
	d.AddRequest(api.NewPkgRequest(req))
	return d.SetResolved(embeddedSpec, PackageSource{EmbeddedBy: &embeddedSpec})
}

// GetResolved returns a copy of the packages resolved directly by this
// decision (not including ancestors).
func (d *Decision) GetResolved() *Solution { return d.resolved.Clone() }

// LocalRequests returns the requests added directly by this decision
// (not including ancestors), keyed by package or variable name.
func (d *Decision) LocalRequests() map[string][]api.Request {
	out := make(map[string][]api.Request, len(d.requests))
	for name, reqs := range d.requests {
		out[name] = append([]api.Request{}, reqs...)
	}
	return out
}

// LocalUnresolved returns the names this decision itself marked
// unresolved, sorted for deterministic output.
func (d *Decision) LocalUnresolved() []string {
	names := make([]string, 0, len(d.unresolved))
	for name := range d.unresolved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetCurrentSolution returns the full resolved state at this decision:
// every ancestor's resolutions, overlaid by this decision's own, with
// anything this decision (or an ancestor along the way) marked
// unresolved removed.
func (d *Decision) GetCurrentSolution() *Solution {
	var sol *Solution
	if p := d.Parent(); p != nil {
		sol = p.GetCurrentSolution()
	} else {
		sol = NewSolution()
	}
	sol.Update(d.resolved)
	for name := range d.unresolved {
		sol.Remove(name)
	}
	return sol
}

// GetPackageRequests returns every request for name added anywhere from
// the root down to and including this decision, in that order.
func (d *Decision) GetPackageRequests(name string) []api.Request {
	var out []api.Request
	if p := d.Parent(); p != nil {
		out = append(out, p.GetPackageRequests(name)...)
	}
	out = append(out, d.requests[name]...)
	return out
}

// GetAllPackageRequests returns every request added anywhere in the tree
// above and including this decision, grouped by package name.
func (d *Decision) GetAllPackageRequests() map[string][]api.Request {
	out := make(map[string][]api.Request)
	if p := d.Parent(); p != nil {
		for name, reqs := range p.GetAllPackageRequests() {
			out[name] = append(out[name], reqs...)
		}
	}
	for name, reqs := range d.requests {
		out[name] = append(out[name], reqs...)
	}
	return out
}

// PinnedOptions collects every VarRequest added anywhere in the tree above
// and including this decision into an OptionMap, so a candidate build's
// declared options can be checked for compatibility before it is accepted.
func (d *Decision) PinnedOptions() api.OptionMap {
	opts := make(api.OptionMap)
	for name, reqs := range d.GetAllPackageRequests() {
		for _, r := range reqs {
			if r.Var != nil {
				opts[name] = r.Var.Value
			}
		}
	}
	return opts
}

// GetMergedRequest returns a single PkgRequest that satisfies every
// request for name added anywhere in the tree above this decision, or
// nil if name has never been requested.
func (d *Decision) GetMergedRequest(name string) (*api.PkgRequest, error) {
	requests := d.GetPackageRequests(name)
	var pkgRequests []api.PkgRequest
	for _, r := range requests {
		if r.Pkg != nil {
			pkgRequests = append(pkgRequests, *r.Pkg)
		}
	}
	if len(pkgRequests) == 0 {
		return nil, nil
	}
	merged, err := api.RestrictAll(pkgRequests)
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// unresolvedIn returns, from requests (grouped by name), only those names
// whose merged request is not already satisfied by resolved.
func (d *Decision) unresolvedIn(requests map[string][]api.Request, resolved *Solution) (map[string][]api.Request, error) {
	out := make(map[string][]api.Request)
	for name, reqs := range requests {
		merged, err := d.GetMergedRequest(name)
		if err != nil {
			return nil, err
		}
		if merged == nil {
			continue
		}
		if !resolved.Satisfies(*merged) {
			out[name] = reqs
		}
	}
	return out, nil
}

// UnresolvedRequests returns the requests added by this decision (not its
// ancestors) whose package is not yet satisfied by the current solution.
// Computed fresh on every call: per spec.md's redesign note, unresolved
// state is never memoized on the node, only recomputed from current data,
// so nothing leaks across branches when a decision is mutated.
func (d *Decision) UnresolvedRequests() (map[string][]api.Request, error) {
	return d.unresolvedIn(d.requests, d.GetCurrentSolution())
}

// GetAllUnresolvedRequests returns every request in the tree above and
// including this decision whose package is not yet satisfied.
func (d *Decision) GetAllUnresolvedRequests() (map[string][]api.Request, error) {
	return d.unresolvedIn(d.GetAllPackageRequests(), d.GetCurrentSolution())
}

// HasUnresolvedRequests reports whether this solver state has any
// unsatisfied package requests at all.
func (d *Decision) HasUnresolvedRequests() (bool, error) {
	unresolved, err := d.GetAllUnresolvedRequests()
	if err != nil {
		return false, err
	}
	return len(unresolved) > 0, nil
}

// NextRequest returns the first unresolved request (in sorted package
// name order, see orderedNames) whose merged inclusion
// policy is Always, or nil if none qualifies.
func (d *Decision) NextRequest() (*api.PkgRequest, error) {
	unresolved, err := d.GetAllUnresolvedRequests()
	if err != nil {
		return nil, err
	}
	for _, name := range d.tree.orderedNames(unresolved) {
		merged, err := d.GetMergedRequest(name)
		if err != nil {
			return nil, err
		}
		if merged != nil && merged.Inclusion == api.IncludeAlways {
			return merged, nil
		}
	}
	return nil, nil
}

func (d *Decision) String() string {
	if d.err != nil {
		return "STOP: " + d.err.Error()
	}
	return ""
}

// DecisionTree owns the arena of Decisions rooted at a single initial
// state and supports preorder traversal and post-failure diagnosis.
type DecisionTree struct {
	arena []*Decision
}

// NewDecisionTree returns a tree with a single, empty root decision.
func NewDecisionTree() *DecisionTree {
	t := &DecisionTree{}
	root := newDecision(t, -1)
	root.index = 0
	t.arena = append(t.arena, root)
	return t
}

func (t *DecisionTree) at(i int) *Decision { return t.arena[i] }

// Root returns the tree's root decision.
func (t *DecisionTree) Root() *Decision { return t.arena[0] }

// orderedNames returns the keys of m in a deterministic order: names are
// sorted so traversal order does not depend on Go's randomized map
// iteration.
func (t *DecisionTree) orderedNames(m map[string][]api.Request) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk returns every decision in the tree in depth-first preorder,
// visiting branches in the order they were added.
func (t *DecisionTree) Walk() []*Decision {
	var out []*Decision
	stack := []*Decision{t.Root()}
	for len(stack) > 0 {
		here := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, here)
		children := here.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}

// GetErrorChain walks the rightmost (most recently tried) branches from
// the root until it steps outside the failed subtree, collecting the
// error at each step. The result starts with the last error encountered
// and ends with its root cause.
func (t *DecisionTree) GetErrorChain() []error {
	var chain []error
	bad := t.Root()
	for len(bad.children) > 0 {
		last := t.at(bad.children[len(bad.children)-1])
		if last.err == nil {
			break
		}
		chain = append(chain, last.err)
		if len(bad.children) < 2 {
			break
		}
		bad = t.at(bad.children[len(bad.children)-2])
	}
	return chain
}
