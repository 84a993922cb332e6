package symbolindex

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sorahex/rubylsp/pkg/fqn"
)

// appliedEdge records that a ClassNode's edge list was mutated by a
// particular file, so RemoveByLocation can undo exactly that contribution
// without disturbing edges contributed by other files (open classes can
// `include` different modules from different reopenings).
type appliedEdge struct {
	owner  fqn.Key // owner's PathKey
	kind   EdgeKind
	target fqn.FQN
}

// Index is the cross-file symbol table: every class, module, method,
// constant, and their use-sites across a workspace. Reads are safe
// concurrently with other reads; writes are serialized behind a single
// RWMutex so a reader never observes a class/module node mid-update.
type Index struct {
	mu sync.RWMutex

	entries map[fqn.Key][]*Entry
	nodes   map[fqn.Key]*ClassNode

	references map[fqn.Key][]*Reference

	// reverse indexes keyed by document, for O(removed) RemoveByLocation.
	fileEntries map[string][]*Entry
	fileRefs    map[string][]*Reference
	fileEdges   map[string][]appliedEdge

	pending map[fqn.Key][]PendingEdge

	trie *Trie

	logger *slog.Logger

	// stats, lock-free
	entryCount      atomic.Int64
	referenceCount  atomic.Int64
	insertCalls     atomic.Int64
	removeDocuments atomic.Int64
}

// New creates an empty Index.
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		entries:     make(map[fqn.Key][]*Entry, 4096),
		nodes:       make(map[fqn.Key]*ClassNode, 1024),
		references:  make(map[fqn.Key][]*Reference, 4096),
		fileEntries: make(map[string][]*Entry, 256),
		fileRefs:    make(map[string][]*Reference, 256),
		fileEdges:   make(map[string][]appliedEdge, 256),
		pending:     make(map[fqn.Key][]PendingEdge),
		trie:        NewTrie(),
		logger:      logger,
	}
}

// InsertEntry adds entry to the index. Idempotent on (FQN, Kind, Location):
// inserting the same definition twice (e.g. a re-run of a phase) is a no-op.
func (idx *Index) InsertEntry(e *Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.insertEntryLocked(e)
}

func (idx *Index) insertEntryLocked(e *Entry) {
	idx.insertCalls.Add(1)
	key := e.FQN.Key()

	for _, existing := range idx.entries[key] {
		if sameEntry(existing, e) {
			return // idempotent
		}
	}

	idx.entries[key] = append(idx.entries[key], e)
	sort.SliceStable(idx.entries[key], func(i, j int) bool {
		a, b := idx.entries[key][i], idx.entries[key][j]
		if a.Location.Document != b.Location.Document {
			return a.Location.Document < b.Location.Document
		}
		return a.Location.StartByte < b.Location.StartByte
	})

	idx.fileEntries[e.Location.Document] = append(idx.fileEntries[e.Location.Document], e)
	idx.entryCount.Add(1)

	idx.trie.Insert(e.FQN.Terminal, e.FQN)

	idx.ensureNodeLocked(e.FQN, e.Owner)
}

func sameEntry(a, b *Entry) bool {
	return a.FQN.Equal(b.FQN) &&
		a.Location.Document == b.Location.Document &&
		a.Location.StartByte == b.Location.StartByte &&
		a.Location.EndByte == b.Location.EndByte
}

// ensureNodeLocked registers e's FQN as a member (method/constant) of its
// owning node, and ensures a ClassNode exists for class/module definitions
// themselves. Must be called with idx.mu held.
func (idx *Index) ensureNodeLocked(target fqn.FQN, owner *fqn.FQN) {
	switch target.Kind {
	case fqn.KindClass, fqn.KindModule:
		idx.getOrCreateNodeLocked(target)
		// Register as a constant child of its own namespace parent (or the
		// top-level sentinel).
		if parent := idx.getOrCreateNodeLocked(target.Namespace()); parent != nil {
			addIfAbsent(&parent.Constants, target)
		}
	case fqn.KindConstant:
		if parent := idx.getOrCreateNodeLocked(target.Namespace()); parent != nil {
			addIfAbsent(&parent.Constants, target)
		}
	case fqn.KindMethod:
		if owner != nil {
			if node := idx.getOrCreateNodeLocked(*owner); node != nil {
				addIfAbsent(&node.Methods, target)
			}
		}
	case fqn.KindSingletonMethod:
		if owner != nil {
			if node := idx.getOrCreateNodeLocked(*owner); node != nil {
				addIfAbsent(&node.SingletonMethods, target)
			}
		}
	}
}

// getOrCreateNodeLocked returns the ClassNode for fqn, creating an empty one
// (NodeKind defaulted to NodeClass, refined later when the definition itself
// is seen) if absent. For the top-level namespace it returns the shared
// top-level sentinel node; for other non-class/module FQNs it returns nil.
func (idx *Index) getOrCreateNodeLocked(target fqn.FQN) *ClassNode {
	if target.IsTopLevel() {
		// Top level has no ClassNode of its own; constants live directly in
		// idx.nodes under a synthetic sentinel key instead.
		return idx.getOrCreateSentinelTopLevelLocked()
	}
	if target.Kind != fqn.KindClass && target.Kind != fqn.KindModule {
		return nil
	}
	key := target.PathKey()
	node, ok := idx.nodes[key]
	if !ok {
		node = &ClassNode{FQN: target, NodeKind: NodeClass}
		idx.nodes[key] = node
	}
	return node
}

var topLevelSentinel = fqn.New(nil, "", fqn.KindModule)

func (idx *Index) getOrCreateSentinelTopLevelLocked() *ClassNode {
	key := topLevelSentinel.PathKey()
	node, ok := idx.nodes[key]
	if !ok {
		node = &ClassNode{FQN: topLevelSentinel, NodeKind: NodeModule}
		idx.nodes[key] = node
	}
	return node
}

func addIfAbsent(slice *[]fqn.FQN, target fqn.FQN) {
	for _, f := range *slice {
		if f.Equal(target) {
			return
		}
	}
	*slice = append(*slice, target)
}

// DefineNode records (or refines) the ClassNode for a class/module
// definition itself, recording its kind and applying its superclass/
// include/prepend/extend edges — or, for edges whose target is not yet
// indexed, recording them as pending until that target is defined.
func (idx *Index) DefineNode(target fqn.FQN, kind NodeKind, document string,
	superclass *fqn.FQN, included, prepended, extended []fqn.FQN) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	node := idx.getOrCreateNodeLocked(target)
	if node == nil {
		return
	}
	// target carries the authoritative Kind (class vs module); a prior
	// getOrCreateNodeLocked call from ensureNodeLocked may have planted a
	// placeholder node keyed only by path, with Kind guessed from context.
	node.FQN = target
	node.NodeKind = kind

	if superclass != nil {
		idx.applyOrDeferEdgeLocked(target, document, EdgeSuperclass, *superclass)
	}
	for _, m := range included {
		idx.applyOrDeferEdgeLocked(target, document, EdgeInclude, m)
	}
	for _, m := range prepended {
		idx.applyOrDeferEdgeLocked(target, document, EdgePrepend, m)
	}
	for _, m := range extended {
		idx.applyOrDeferEdgeLocked(target, document, EdgeExtend, m)
	}

	// Flush any edges that were waiting on `target` itself to appear.
	idx.flushPendingOntoLocked(target)
}

func (idx *Index) applyOrDeferEdgeLocked(owner fqn.FQN, document string, kind EdgeKind, target fqn.FQN) {
	if target.Kind != fqn.KindClass && target.Kind != fqn.KindModule {
		// not a class/module reference at all — ignore.
		return
	}
	if _, exists := idx.nodes[target.PathKey()]; exists {
		idx.applyEdgeLocked(owner, document, kind, target)
		return
	}
	idx.pending[target.PathKey()] = append(idx.pending[target.PathKey()], PendingEdge{Source: owner, Kind: kind, Document: document})
	idx.fileEdges[document] = append(idx.fileEdges[document], appliedEdge{owner: owner.PathKey(), kind: kind, target: target})
}

func (idx *Index) applyEdgeLocked(owner fqn.FQN, document string, kind EdgeKind, target fqn.FQN) {
	node := idx.nodes[owner.PathKey()]
	if node == nil {
		return
	}
	switch kind {
	case EdgeSuperclass:
		t := target
		node.Superclass = &t
	case EdgeInclude:
		addIfAbsent(&node.Included, target)
	case EdgePrepend:
		addIfAbsent(&node.Prepended, target)
	case EdgeExtend:
		addIfAbsent(&node.Extended, target)
	}
	idx.fileEdges[document] = append(idx.fileEdges[document], appliedEdge{owner: owner.PathKey(), kind: kind, target: target})
}

// flushPendingOntoLocked applies every edge that was waiting on target to
// become indexed, now that it has been.
func (idx *Index) flushPendingOntoLocked(target fqn.FQN) {
	edges := idx.takePendingEdgesForLocked(target.PathKey())
	for _, e := range edges {
		idx.applyEdgeLocked(e.Source, e.Document, e.Kind, target)
	}
}

// RemoveByLocation removes every Entry, reference, and edge contribution
// whose Location lies in document. Used before re-indexing a changed file.
func (idx *Index) RemoveByLocation(document string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeDocuments.Add(1)

	for _, e := range idx.fileEntries[document] {
		key := e.FQN.Key()
		idx.entries[key] = removeEntry(idx.entries[key], e)
		if len(idx.entries[key]) == 0 {
			delete(idx.entries, key)
		}
		idx.trie.Remove(e.FQN.Terminal, e.FQN)
		idx.entryCount.Add(-1)
		idx.unregisterFromOwnerLocked(e)
	}
	delete(idx.fileEntries, document)

	for _, r := range idx.fileRefs[document] {
		key := r.Target.Key()
		idx.references[key] = removeReference(idx.references[key], r)
		if len(idx.references[key]) == 0 {
			delete(idx.references, key)
		}
		idx.referenceCount.Add(-1)
	}
	delete(idx.fileRefs, document)

	for _, ae := range idx.fileEdges[document] {
		idx.revertEdgeLocked(ae)
	}
	delete(idx.fileEdges, document)
}

func (idx *Index) unregisterFromOwnerLocked(e *Entry) {
	switch e.FQN.Kind {
	case fqn.KindClass, fqn.KindModule:
		if parent := idx.nodes[e.FQN.Namespace().PathKey()]; parent != nil {
			removeFQN(&parent.Constants, e.FQN)
		}
	case fqn.KindConstant:
		ns := e.FQN.Namespace()
		if parent := idx.nodes[ns.PathKey()]; parent != nil {
			removeFQN(&parent.Constants, e.FQN)
		}
	case fqn.KindMethod:
		if e.Owner != nil {
			if node := idx.nodes[e.Owner.PathKey()]; node != nil {
				removeFQN(&node.Methods, e.FQN)
			}
		}
	case fqn.KindSingletonMethod:
		if e.Owner != nil {
			if node := idx.nodes[e.Owner.PathKey()]; node != nil {
				removeFQN(&node.SingletonMethods, e.FQN)
			}
		}
	}
}

// revertEdgeLocked undoes one recorded edge contribution. The edge may have
// been fully applied to its owner's ClassNode, or still waiting in
// idx.pending if its target had not been indexed yet — both are reverted
// unconditionally; whichever did not happen is a harmless no-op.
func (idx *Index) revertEdgeLocked(ae appliedEdge) {
	if pend, ok := idx.pending[ae.target.PathKey()]; ok {
		idx.pending[ae.target.PathKey()] = removePendingBySource(pend, ae.owner)
	}

	node := idx.nodes[ae.owner]
	if node == nil {
		return
	}
	switch ae.kind {
	case EdgeSuperclass:
		if node.Superclass != nil && node.Superclass.Equal(ae.target) {
			node.Superclass = nil
		}
	case EdgeInclude:
		removeFQN(&node.Included, ae.target)
	case EdgePrepend:
		removeFQN(&node.Prepended, ae.target)
	case EdgeExtend:
		removeFQN(&node.Extended, ae.target)
	}
}

func removePendingBySource(edges []PendingEdge, owner fqn.Key) []PendingEdge {
	out := edges[:0]
	for _, e := range edges {
		if e.Source.PathKey() != owner {
			out = append(out, e)
		}
	}
	return out
}

func removeEntry(entries []*Entry, target *Entry) []*Entry {
	out := entries[:0]
	for _, e := range entries {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

func removeReference(refs []*Reference, target *Reference) []*Reference {
	out := refs[:0]
	for _, r := range refs {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

func removeFQN(slice *[]fqn.FQN, target fqn.FQN) {
	out := (*slice)[:0]
	for _, f := range *slice {
		if !f.Equal(target) {
			out = append(out, f)
		}
	}
	*slice = out
}

// KindFilter optionally narrows Lookup to entries of particular FQN kinds.
// A nil/empty filter matches every kind.
type KindFilter []fqn.Kind

func (f KindFilter) matches(k fqn.Kind) bool {
	if len(f) == 0 {
		return true
	}
	for _, want := range f {
		if want == k {
			return true
		}
	}
	return false
}

// Lookup returns every Entry registered under fqn, in stable insertion/
// byte-offset order, optionally narrowed by kindFilter.
func (idx *Index) Lookup(target fqn.FQN, kindFilter KindFilter) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := idx.entries[target.Key()]
	if len(kindFilter) == 0 {
		out := make([]*Entry, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if kindFilter.matches(e.FQN.Kind) {
			out = append(out, e)
		}
	}
	return out
}

// Resolve implements fqn.Table over this Index, so pkg/fqn's lookup
// algorithm can be driven directly by the live Symbol Index.
func (idx *Index) Resolve(parent fqn.FQN, name string) ([]fqn.FQN, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var node *ClassNode
	if parent.IsTopLevel() {
		node = idx.nodes[topLevelSentinel.PathKey()]
	} else {
		node = idx.nodes[parent.PathKey()]
	}
	var out []fqn.FQN
	// node.Constants already holds both plain constants and nested
	// class/module definitions registered under this namespace (see
	// ensureNodeLocked), so a single scan covers both.
	if node != nil {
		for _, c := range node.Constants {
			if c.Terminal == name {
				out = append(out, c)
			}
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// Children returns the bare constant and method names directly under fqn.
func (idx *Index) Children(target fqn.FQN) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	node := idx.nodes[target.PathKey()]
	if node == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	add := func(f fqn.FQN) {
		if _, ok := seen[f.Terminal]; !ok {
			seen[f.Terminal] = struct{}{}
			names = append(names, f.Terminal)
		}
	}
	for _, c := range node.Constants {
		add(c)
	}
	for _, m := range node.Methods {
		add(m)
	}
	for _, m := range node.SingletonMethods {
		add(m)
	}
	return names
}

// GetNode returns the ClassNode for fqn, if present.
func (idx *Index) GetNode(target fqn.FQN) (*ClassNode, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	node, ok := idx.nodes[target.PathKey()]
	return node, ok
}

// EachNode calls fn once per ClassNode currently indexed. Used by
// pkg/ancestor to iterate every class/module for linearization. fn must not
// call back into Index (the lock is held for the duration of the call).
func (idx *Index) EachNode(fn func(*ClassNode)) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for key, n := range idx.nodes {
		if key == topLevelSentinel.PathKey() {
			continue
		}
		fn(n)
	}
}

// AddReference records a use-site pointing at target.
func (idx *Index) AddReference(target fqn.FQN, ref *Reference) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := target.Key()
	idx.references[key] = append(idx.references[key], ref)
	idx.fileRefs[ref.Location.Document] = append(idx.fileRefs[ref.Location.Document], ref)
	idx.referenceCount.Add(1)
}

// ReferencesTo returns every reference recorded against target.
func (idx *Index) ReferencesTo(target fqn.FQN) []*Reference {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	refs := idx.references[target.Key()]
	out := make([]*Reference, len(refs))
	copy(out, refs)
	return out
}

// SearchCompletions returns every Entry FQN whose bare name begins with
// prefix, via the completion trie.
func (idx *Index) SearchCompletions(prefix string) []fqn.FQN {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.trie.SearchPrefix(prefix)
}

// SearchMethodsByName returns every method/singleton-method Entry FQN whose
// bare name is exactly name, across every owner in the index — the
// receiver-unknown fallback for method-call resolution.
func (idx *Index) SearchMethodsByName(name string) []fqn.FQN {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	matches := idx.trie.SearchExact(name)
	out := make([]fqn.FQN, 0, len(matches))
	for _, f := range matches {
		if f.Kind == fqn.KindMethod || f.Kind == fqn.KindSingletonMethod {
			out = append(out, f)
		}
	}
	return out
}

// TouchedOwners returns the distinct owner FQNs of every mixin/inheritance
// edge document contributed (applied or still pending). Used by the
// Coordinator's incremental update to mark dirty exactly the ancestor
// chains a re-indexed file's own class/module reopenings could have
// changed, without a full LinearizeAll sweep.
func (idx *Index) TouchedOwners(document string) []fqn.FQN {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[fqn.Key]bool)
	var out []fqn.FQN
	for _, ae := range idx.fileEdges[document] {
		if seen[ae.owner] {
			continue
		}
		seen[ae.owner] = true
		if node, ok := idx.nodes[ae.owner]; ok {
			out = append(out, node.FQN)
		}
	}
	return out
}

// Stats reports point-in-time counters for observability.
type Stats struct {
	Entries          int64
	References       int64
	Nodes            int
	PendingEdgeCount int
	InsertCalls      int64
	RemoveDocuments  int64
}

// Stats returns current index statistics.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	pending := 0
	for _, v := range idx.pending {
		pending += len(v)
	}

	return Stats{
		Entries:          idx.entryCount.Load(),
		References:       idx.referenceCount.Load(),
		Nodes:            len(idx.nodes),
		PendingEdgeCount: pending,
		InsertCalls:      idx.insertCalls.Load(),
		RemoveDocuments:  idx.removeDocuments.Load(),
	}
}
