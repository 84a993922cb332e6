package symbolindex

import "github.com/sorahex/rubylsp/pkg/fqn"

// EdgeKind tags a mixin/inheritance edge recorded against a class/module
// node.
type EdgeKind int

const (
	EdgeSuperclass EdgeKind = iota
	EdgeInclude
	EdgePrepend
	EdgeExtend
)

// PendingEdge is an include/prepend/extend/superclass edge whose target
// FQN was not yet present in the index at the time the edge was recorded.
// It is keyed by target FQN so that once the target's node is inserted, the
// edge can be flushed onto it.
type PendingEdge struct {
	Source   fqn.FQN
	Kind     EdgeKind
	Document string
}

// takePendingEdgesForLocked removes and returns every pending edge recorded
// against target, keyed by its PathKey (container identity, kind-agnostic).
// Safe for concurrent callers only when the caller already holds the
// Index's write lock — it is invoked from applyOrDeferEdgeLocked's
// counterpart flush path and from ApplyPendingEdges.
func (idx *Index) takePendingEdgesForLocked(target fqn.Key) []PendingEdge {
	edges := idx.pending[target]
	delete(idx.pending, target)
	return edges
}

// ApplyPendingEdges applies every edge that was waiting on target to become
// indexed, now that target's ClassNode exists, and returns the distinct
// owner FQNs whose ancestor chain depends on target. pkg/ancestor calls this
// instead of mutating ClassNode fields itself, so every writer of a node's
// Superclass/Included/Prepended/Extended slices goes through the same lock.
func (idx *Index) ApplyPendingEdges(target fqn.FQN) []fqn.FQN {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	edges := idx.takePendingEdgesForLocked(target.PathKey())
	seen := make(map[fqn.Key]bool, len(edges))
	owners := make([]fqn.FQN, 0, len(edges))
	for _, e := range edges {
		idx.applyEdgeLocked(e.Source, e.Document, e.Kind, target)
		if ownerKey := e.Source.PathKey(); !seen[ownerKey] {
			seen[ownerKey] = true
			owners = append(owners, e.Source)
		}
	}
	return owners
}
