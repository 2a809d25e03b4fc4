// Package trie implements the byte-keyed trie backing the fact and rule
// store. Keys are canonical value encodings. Each node keeps its children
// sorted in strictly ascending byte order at all times; violating that
// during construction is a programming error, not a data error.
package trie

import (
	"fmt"
	"sort"
)

type node struct {
	children []child // ascending by byte, no duplicates
	terminal bool
}

type child struct {
	b byte
	n *node
}

// find returns the index of b in the children slice and whether it is
// present. When absent, the index is the insertion point that keeps the
// slice sorted.
func (n *node) find(b byte) (int, bool) {
	i := sort.Search(len(n.children), func(i int) bool {
		return n.children[i].b >= b
	})
	return i, i < len(n.children) && n.children[i].b == b
}

func (n *node) childFor(b byte) *node {
	if i, ok := n.find(b); ok {
		return n.children[i].n
	}
	return nil
}

// Trie is an ordered byte-keyed set with prefix iteration. The zero value
// is not usable; call New or Build.
type Trie struct {
	root *node
	size int
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{root: &node{}}
}

// Len returns the number of keys present.
func (t *Trie) Len() int { return t.size }

// Insert adds a key, reporting whether it was newly added.
func (t *Trie) Insert(key []byte) bool {
	cur := t.root
	for _, b := range key {
		i, ok := cur.find(b)
		if !ok {
			next := &node{}
			cur.children = append(cur.children, child{})
			copy(cur.children[i+1:], cur.children[i:])
			cur.children[i] = child{b: b, n: next}
			cur = next
			continue
		}
		cur = cur.children[i].n
	}
	if cur.terminal {
		return false
	}
	cur.terminal = true
	t.size++
	return true
}

// Contains reports whether the exact key is present.
func (t *Trie) Contains(key []byte) bool {
	cur := t.root
	for _, b := range key {
		if cur = cur.childFor(b); cur == nil {
			return false
		}
	}
	return cur.terminal
}

// Delete removes a key, reporting whether it was present. Nodes left with
// no children and no terminal marker are pruned.
func (t *Trie) Delete(key []byte) bool {
	if !t.deleteFrom(t.root, key) {
		return false
	}
	t.size--
	return true
}

// deleteFrom unmarks key below n and prunes empty descendants. Returns
// whether the key was present.
func (t *Trie) deleteFrom(n *node, key []byte) bool {
	if len(key) == 0 {
		if !n.terminal {
			return false
		}
		n.terminal = false
		return true
	}
	i, ok := n.find(key[0])
	if !ok {
		return false
	}
	next := n.children[i].n
	if !t.deleteFrom(next, key[1:]) {
		return false
	}
	if !next.terminal && len(next.children) == 0 {
		n.children = append(n.children[:i], n.children[i+1:]...)
	}
	return true
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// Walk calls fn for every key in ascending byte order. Returning false from
// fn stops the walk. The key slice passed to fn is reused between calls;
// copy it if it must outlive the callback.
func (t *Trie) Walk(fn func(key []byte) bool) {
	walk(t.root, make([]byte, 0, 64), fn)
}

// WalkPrefix calls fn for every key sharing the given prefix, in ascending
// byte order. The key slice passed to fn is reused between calls.
func (t *Trie) WalkPrefix(prefix []byte, fn func(key []byte) bool) {
	cur := t.root
	for _, b := range prefix {
		if cur = cur.childFor(b); cur == nil {
			return
		}
	}
	buf := make([]byte, 0, len(prefix)+64)
	walk(cur, append(buf, prefix...), fn)
}

func walk(n *node, key []byte, fn func(key []byte) bool) bool {
	if n.terminal {
		if !fn(key) {
			return false
		}
	}
	for _, c := range n.children {
		if !walk(c.n, append(key, c.b), fn) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Batch construction
// ---------------------------------------------------------------------------

// Build constructs a trie from a batch of keys in a single pass. The batch
// is recursively partitioned on the next unconsumed byte, so every shared
// prefix is traversed exactly once rather than once per key. Duplicate keys
// collapse. The result is identical to sequentially inserting the keys in
// any order.
func Build(keys [][]byte) *Trie {
	t := &Trie{root: &node{}}
	if len(keys) == 0 {
		return t
	}
	t.size = buildNode(t.root, keys, 0)
	return t
}

// buildNode fills n from the batch items at the given depth and returns the
// number of distinct keys below it. The grouped byte set is sorted before
// children are emitted, which is what maintains the ascending-order
// invariant.
func buildNode(n *node, items [][]byte, depth int) int {
	count := 0
	groups := make(map[byte][][]byte)
	for _, item := range items {
		if len(item) == depth {
			if !n.terminal {
				n.terminal = true
				count++
			}
			continue
		}
		b := item[depth]
		groups[b] = append(groups[b], item)
	}

	bytes := make([]byte, 0, len(groups))
	for b := range groups {
		bytes = append(bytes, b)
	}
	sort.Slice(bytes, func(i, j int) bool { return bytes[i] < bytes[j] })

	n.children = make([]child, 0, len(bytes))
	for _, b := range bytes {
		sub := &node{}
		count += buildNode(sub, groups[b], depth+1)
		n.children = append(n.children, child{b: b, n: sub})
	}
	return count
}

// ---------------------------------------------------------------------------
// Merge
// ---------------------------------------------------------------------------

// Join merges other into t. Duplicate keys collapse, so joining the same
// trie twice is idempotent. Join adopts nodes from other; other must not be
// used afterwards.
func (t *Trie) Join(other *Trie) {
	if other == nil || other.root == nil {
		return
	}
	t.size += join(t.root, other.root)
}

// join merges b into a and returns the number of keys newly added to a.
func join(a, b *node) int {
	added := 0
	if b.terminal && !a.terminal {
		a.terminal = true
		added++
	}

	// Merge two sorted child lists, preserving ascending order.
	merged := make([]child, 0, len(a.children)+len(b.children))
	i, j := 0, 0
	for i < len(a.children) && j < len(b.children) {
		ac, bc := a.children[i], b.children[j]
		switch {
		case ac.b < bc.b:
			merged = append(merged, ac)
			i++
		case ac.b > bc.b:
			added += countKeys(bc.n)
			merged = append(merged, bc)
			j++
		default:
			added += join(ac.n, bc.n)
			merged = append(merged, ac)
			i++
			j++
		}
	}
	merged = append(merged, a.children[i:]...)
	for ; j < len(b.children); j++ {
		added += countKeys(b.children[j].n)
		merged = append(merged, b.children[j])
	}
	a.children = merged
	return added
}

func countKeys(n *node) int {
	count := 0
	if n.terminal {
		count++
	}
	for _, c := range n.children {
		count += countKeys(c.n)
	}
	return count
}

// ---------------------------------------------------------------------------
// Validation and comparison
// ---------------------------------------------------------------------------

// Equal reports whether two tries contain exactly the same key set.
func (t *Trie) Equal(other *Trie) bool {
	if t.size != other.size {
		return false
	}
	return nodesEqual(t.root, other.root)
}

func nodesEqual(a, b *node) bool {
	if a.terminal != b.terminal || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if a.children[i].b != b.children[i].b {
			return false
		}
		if !nodesEqual(a.children[i].n, b.children[i].n) {
			return false
		}
	}
	return true
}

// Validate checks the sorted-children invariant over the whole trie. A
// non-nil error indicates an implementation bug.
func (t *Trie) Validate() error {
	return validate(t.root, nil)
}

func validate(n *node, path []byte) error {
	for i := 1; i < len(n.children); i++ {
		if n.children[i-1].b >= n.children[i].b {
			return fmt.Errorf("trie: children out of order at path %x: 0x%02x before 0x%02x",
				path, n.children[i-1].b, n.children[i].b)
		}
	}
	for _, c := range n.children {
		if err := validate(c.n, append(path, c.b)); err != nil {
			return err
		}
	}
	return nil
}
