// Package ancestor computes linearized ancestor chains for classes and
// modules from the Symbol Index's inheritance and mixin edges. Each node's
// chain is memoized behind an explicit four-state cell (uncomputed,
// computing, ready, dirty) so concurrent readers share one computation
// instead of racing to recompute the same chain.
package ancestor

import (
	"log/slog"
	"sync"

	"github.com/sorahex/rubylsp/pkg/fqn"
	"github.com/sorahex/rubylsp/pkg/symbolindex"
)

// state is a Class/Module node's ancestor-cache state.
type state int

const (
	uncomputed state = iota
	computing
	ready
	dirty
)

type cell struct {
	state state
	chain []fqn.FQN
}

// Diagnostic records a broken inheritance/mixin cycle observed while
// linearizing target's chain.
type Diagnostic struct {
	FQN     fqn.FQN
	Message string
}

// Resolver computes and memoizes ancestor chains over a Symbol Index. A
// single coarse mutex serializes computation: ancestor chains are read far
// more often than the edges that feed them change, so the simplicity of one
// lock outweighs the throughput of per-cell locking for this workload.
type Resolver struct {
	mu     sync.Mutex
	idx    *symbolindex.Index
	cells  map[fqn.Key]*cell
	// dependents[K] is the set of nodes whose chain used K directly
	// (prepended/included/superclass), so MarkDirty can propagate to
	// every transitively affected descendant.
	dependents  map[fqn.Key]map[fqn.Key]bool
	diagnostics []Diagnostic
	logger      *slog.Logger
}

// New builds a Resolver over idx.
func New(idx *symbolindex.Index, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		idx:        idx,
		cells:      make(map[fqn.Key]*cell),
		dependents: make(map[fqn.Key]map[fqn.Key]bool),
		logger:     logger,
	}
}

// Resolve returns target's linearized ancestor chain, most-derived first,
// computing and memoizing it if necessary.
func (r *Resolver) Resolve(target fqn.FQN) []fqn.FQN {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(target, make(map[fqn.Key]bool))
}

// LinearizeAll computes (and memoizes) the ancestor chain of every node
// currently in the index. Driven by the Coordinator's mixin-resolution
// phase, once every file's definitions have been indexed.
func (r *Resolver) LinearizeAll() {
	var targets []fqn.FQN
	r.idx.EachNode(func(n *symbolindex.ClassNode) {
		targets = append(targets, n.FQN)
	})
	for _, t := range targets {
		r.Resolve(t)
	}
}

// MarkDirty invalidates target's cached chain, along with every node whose
// own chain transitively depends on target, so the next Resolve recomputes
// them. Called by the Coordinator after an incremental re-index changes a
// mixin/inheritance edge.
func (r *Resolver) MarkDirty(target fqn.FQN) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markDirtyLocked(target.PathKey())
}

func (r *Resolver) markDirtyLocked(key fqn.Key) {
	visited := make(map[fqn.Key]bool)
	var walk func(fqn.Key)
	walk = func(k fqn.Key) {
		if visited[k] {
			return
		}
		visited[k] = true
		if c, ok := r.cells[k]; ok {
			c.state = dirty
		}
		for dep := range r.dependents[k] {
			walk(dep)
		}
	}
	walk(key)
}

// Diagnostics returns every inheritance/mixin cycle observed so far.
func (r *Resolver) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diagnostics))
	copy(out, r.diagnostics)
	return out
}

func (r *Resolver) cellFor(target fqn.FQN) *cell {
	key := target.PathKey()
	c, ok := r.cells[key]
	if !ok {
		c = &cell{state: uncomputed}
		r.cells[key] = c
	}
	return c
}

// resolveLocked computes target's ancestor chain. visiting holds the set of
// nodes currently being linearized on this call's recursion path, used to
// detect cycles distinct from ordinary memoized reuse of a Ready chain.
func (r *Resolver) resolveLocked(target fqn.FQN, visiting map[fqn.Key]bool) []fqn.FQN {
	key := target.PathKey()
	c := r.cellFor(target)

	if c.state == ready {
		return c.chain
	}
	if visiting[key] {
		r.diagnostics = append(r.diagnostics, Diagnostic{
			FQN:     target,
			Message: "inheritance/mixin cycle detected; chain truncated at revisit",
		})
		return []fqn.FQN{target}
	}

	r.flushPendingLocked(target)

	c.state = computing
	visiting[key] = true

	node, ok := r.idx.GetNode(target)
	var chain []fqn.FQN
	if !ok {
		chain = []fqn.FQN{target}
	} else {
		chain = r.linearizeLocked(node, visiting)
	}

	delete(visiting, key)
	c.chain = chain
	c.state = ready
	return chain
}

// linearizeLocked orders a class's ancestor chain as: C → prepended modules
// of C (reverse declaration order) → C itself → included modules of C
// (reverse declaration order) → ancestors of C's superclass. Modules follow
// the identical rule with no superclass step. Earlier occurrences win on
// duplicate FQNs, matching the source language's own "most specific wins"
// dispatch order.
func (r *Resolver) linearizeLocked(node *symbolindex.ClassNode, visiting map[fqn.Key]bool) []fqn.FQN {
	var out []fqn.FQN
	seen := make(map[fqn.Key]bool)
	add := func(f fqn.FQN) {
		k := f.Key()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, f)
	}
	dependOn := func(child fqn.FQN) {
		childKey := child.PathKey()
		if r.dependents[childKey] == nil {
			r.dependents[childKey] = make(map[fqn.Key]bool)
		}
		r.dependents[childKey][node.FQN.PathKey()] = true
	}

	for i := len(node.Prepended) - 1; i >= 0; i-- {
		m := node.Prepended[i]
		dependOn(m)
		for _, a := range r.resolveLocked(m, visiting) {
			add(a)
		}
	}

	add(node.FQN)

	for i := len(node.Included) - 1; i >= 0; i-- {
		m := node.Included[i]
		dependOn(m)
		for _, a := range r.resolveLocked(m, visiting) {
			add(a)
		}
	}

	if node.Superclass != nil {
		dependOn(*node.Superclass)
		for _, a := range r.resolveLocked(*node.Superclass, visiting) {
			add(a)
		}
	}

	return out
}

// flushPendingLocked applies every edge that was waiting on target to
// become indexed, now that the Resolver has observed target exists. The
// owners those edges belong to are marked dirty so their next Resolve picks
// up the newly applied edge.
//
// The actual field mutation happens inside Index.ApplyPendingEdges, under
// idx's own write lock, rather than here: every other writer of a
// ClassNode's Superclass/Included/Prepended/Extended fields
// (applyEdgeLocked, DefineNode, revertEdgeLocked) holds idx.mu, and a
// Resolver goroutine mutating those same fields under only r.mu would race
// against a concurrent Coordinator.IncrementalUpdate call.
func (r *Resolver) flushPendingLocked(target fqn.FQN) {
	for _, owner := range r.idx.ApplyPendingEdges(target) {
		r.markDirtyLocked(owner.PathKey())
	}
}
