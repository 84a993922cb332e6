package symbolindex

import "github.com/sorahex/rubylsp/pkg/fqn"

// Trie is a case-sensitive prefix tree keyed by bare constant and method
// names. Each terminal node carries every Entry FQN registered under that
// bare name.
type Trie struct {
	root *trieNode
}

type trieNode struct {
	children map[byte]*trieNode
	fqns     []fqn.FQN // populated only when this node terminates a name
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// NewTrie returns an empty completion trie.
func NewTrie() *Trie {
	return &Trie{root: newTrieNode()}
}

// Insert registers fqn under its bare terminal name.
func (t *Trie) Insert(name string, target fqn.FQN) {
	n := t.root
	for i := 0; i < len(name); i++ {
		c := name[i]
		child, ok := n.children[c]
		if !ok {
			child = newTrieNode()
			n.children[c] = child
		}
		n = child
	}
	n.fqns = append(n.fqns, target)
}

// Remove deletes target from the terminal node for name, if present. The
// trie node itself is left in place (empty fqns) rather than pruned, which
// keeps removal O(len(name)) at the cost of leaving dead nodes behind —
// cheap to tolerate since the trie's shape is bounded by the symbol names
// actually seen, not by churn.
func (t *Trie) Remove(name string, target fqn.FQN) {
	n := t.root
	for i := 0; i < len(name); i++ {
		child, ok := n.children[name[i]]
		if !ok {
			return
		}
		n = child
	}
	for i, f := range n.fqns {
		if f.Equal(target) {
			n.fqns = append(n.fqns[:i], n.fqns[i+1:]...)
			return
		}
	}
}

// SearchExact returns every registered FQN whose bare name is exactly name,
// without descending into longer names sharing the same prefix.
func (t *Trie) SearchExact(name string) []fqn.FQN {
	n := t.root
	for i := 0; i < len(name); i++ {
		child, ok := n.children[name[i]]
		if !ok {
			return nil
		}
		n = child
	}
	out := make([]fqn.FQN, len(n.fqns))
	copy(out, n.fqns)
	return out
}

// SearchPrefix returns every registered FQN whose bare name begins with
// prefix, collected via a depth-first walk of the subtree rooted at prefix.
func (t *Trie) SearchPrefix(prefix string) []fqn.FQN {
	n := t.root
	for i := 0; i < len(prefix); i++ {
		child, ok := n.children[prefix[i]]
		if !ok {
			return nil
		}
		n = child
	}

	var result []fqn.FQN
	var walk func(*trieNode)
	walk = func(node *trieNode) {
		result = append(result, node.fqns...)
		for _, child := range node.children {
			walk(child)
		}
	}
	walk(n)
	return result
}
