package fslm

// Generic LOUDS (Level-Order Unary Degree Sequence) trie, the
// succinct structure both the Lexicon and the n-gram model are built
// from. Grounded on original_source/louds-trie.h (interface) and the
// build/navigation algorithm spelled out in full by the
// specification this package implements; there is no comparable
// third-party succinct-trie library anywhere in the retrieval pack,
// so this is one of the few components built directly against the
// original source rather than an example repo (see DESIGN.md).

import (
	"cmp"
	"fmt"
	"io"
	"sort"
)

// Entry is one key/value pair fed to BuildTrie.
type Entry[S cmp.Ordered, V any] struct {
	Key   []S
	Value V
}

type trieBuildNode[S cmp.Ordered, V any] struct {
	children map[S]*trieBuildNode[S, V]
	hasValue bool
	value    V
}

func newTrieBuildNode[S cmp.Ordered, V any]() *trieBuildNode[S, V] {
	return &trieBuildNode[S, V]{children: make(map[S]*trieBuildNode[S, V])}
}

// Trie is a frozen LOUDS trie over symbols S carrying values V at its
// terminals. The zero value is not usable; construct with BuildTrie.
type Trie[S cmp.Ordered, V any] struct {
	hasExplicitTerminals bool
	shape                *BitVector
	labels               []S
	isTerminal           *BitVector // only set if hasExplicitTerminals
	values               []V        // terminal-id order
}

// BuildTrie constructs a Trie from a set of key/value entries. It
// returns an error if entries is empty or contains a duplicate key.
// When hasExplicitTerminals is false, every key must resolve to a
// distinct non-root node and every non-root node reached by some key
// must itself be a complete key (a "dense" trie, required by the
// n-gram model: see NgramModel).
func BuildTrie[S cmp.Ordered, V any](entries []Entry[S, V], hasExplicitTerminals bool) (*Trie[S, V], error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("fslm: BuildTrie: no entries")
	}
	root := newTrieBuildNode[S, V]()
	for _, e := range entries {
		n := root
		for _, s := range e.Key {
			c, ok := n.children[s]
			if !ok {
				c = newTrieBuildNode[S, V]()
				n.children[s] = c
			}
			n = c
		}
		if n == root {
			return nil, fmt.Errorf("fslm: BuildTrie: empty key not allowed")
		}
		if n.hasValue {
			return nil, fmt.Errorf("fslm: BuildTrie: duplicate key %v", e.Key)
		}
		n.hasValue = true
		n.value = e.Value
	}
	if !hasExplicitTerminals {
		var bad error
		var walk func(n *trieBuildNode[S, V], isRoot bool)
		walk = func(n *trieBuildNode[S, V], isRoot bool) {
			if bad != nil {
				return
			}
			if !isRoot && !n.hasValue {
				bad = fmt.Errorf("fslm: BuildTrie: has_explicit_terminals=false requires every node to carry a value")
				return
			}
			for _, c := range n.children {
				walk(c, false)
			}
		}
		walk(root, true)
		if bad != nil {
			return nil, bad
		}
	}

	t := &Trie[S, V]{hasExplicitTerminals: hasExplicitTerminals, shape: NewBitVector()}
	if hasExplicitTerminals {
		t.isTerminal = NewBitVector()
	}

	type frame struct {
		node   *trieBuildNode[S, V]
		isRoot bool
	}
	queue := []frame{{root, true}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		n := f.node

		keys := make([]S, 0, len(n.children))
		for k := range n.children {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for range keys {
			t.shape.PushBack(true)
		}
		t.shape.PushBack(false)
		for _, k := range keys {
			t.labels = append(t.labels, k)
			queue = append(queue, frame{n.children[k], false})
		}
		if hasExplicitTerminals {
			t.isTerminal.PushBack(n.hasValue)
		}
		if n.hasValue && !f.isRoot {
			t.values = append(t.values, n.value)
		}
	}
	t.shape.Build()
	if hasExplicitTerminals {
		t.isTerminal.Build()
	}
	return t, nil
}

// RootNodeId is always 0.
func (t *Trie[S, V]) RootNodeId() NodeId { return 0 }

// NumNodes returns the total number of nodes, including the root.
func (t *Trie[S, V]) NumNodes() int { return t.shape.NumOnes() + 1 }

// degreeRange returns the half-open range [onesBefore, onesThrough)
// of one-bit indices belonging to node n's own degree block, i.e.
// the range of child slots for n.
func (t *Trie[S, V]) degreeRange(n NodeId) (onesBefore, onesThrough int) {
	if n > 0 {
		onesBefore = t.shape.Rank1(t.shape.Select0(int(n) - 1))
	}
	onesThrough = t.shape.Rank1(t.shape.Select0(int(n)))
	return
}

// FirstChildNodeId returns the node-id of n's first child, or
// InvalidNodeId if n is a leaf.
func (t *Trie[S, V]) FirstChildNodeId(n NodeId) NodeId {
	before, through := t.degreeRange(n)
	if before == through {
		return InvalidNodeId
	}
	return NodeId(before + 1)
}

// Degree returns the number of children of n.
func (t *Trie[S, V]) Degree(n NodeId) int {
	before, through := t.degreeRange(n)
	return through - before
}

// Parent returns the parent of n, or InvalidNodeId if n is the root.
func (t *Trie[S, V]) Parent(n NodeId) NodeId {
	if n == 0 {
		return InvalidNodeId
	}
	pos := t.shape.Select1(int(n) - 1)
	return NodeId(t.shape.Rank0(pos))
}

// EdgeLabel returns the label on the edge from n's parent to n. Must
// not be called with n == RootNodeId().
func (t *Trie[S, V]) EdgeLabel(n NodeId) S {
	return t.labels[int(n)-1]
}

// GetChildren appends n's children (label, node-id pairs, in label
// order) to outLabels/outChildren, which are first truncated to
// length 0. This lets a caller reuse the same backing arrays across
// calls instead of allocating, matching the "no allocation on the
// GetChildren hot path" requirement (see DESIGN.md / spec §5).
func (t *Trie[S, V]) GetChildren(n NodeId, outLabels *[]S, outChildren *[]NodeId) {
	*outLabels = (*outLabels)[:0]
	*outChildren = (*outChildren)[:0]
	before, through := t.degreeRange(n)
	first := NodeId(before + 1)
	for i := before; i < through; i++ {
		*outLabels = append(*outLabels, t.labels[i])
		*outChildren = append(*outChildren, first+NodeId(i-before))
	}
}

// KeyToNodeId descends from the root following key, binary-searching
// each node's children by label. Returns InvalidNodeId on any
// mismatch.
func (t *Trie[S, V]) KeyToNodeId(key []S) NodeId {
	n := t.RootNodeId()
	for _, s := range key {
		before, through := t.degreeRange(n)
		count := through - before
		first := before
		idx := sort.Search(count, func(i int) bool { return t.labels[first+i] >= s })
		if idx >= count || t.labels[first+idx] != s {
			return InvalidNodeId
		}
		n = NodeId(before + 1 + idx)
	}
	return n
}

// NodeIdToKey reconstructs the key for n by walking parent edges to
// the root.
func (t *Trie[S, V]) NodeIdToKey(n NodeId) []S {
	var rev []S
	for n != t.RootNodeId() {
		rev = append(rev, t.EdgeLabel(n))
		n = t.Parent(n)
	}
	key := make([]S, len(rev))
	for i, s := range rev {
		key[len(rev)-1-i] = s
	}
	return key
}

// NodeIdToTerminalId returns n's terminal-id, or InvalidTerminalId if
// n is not a terminal.
func (t *Trie[S, V]) NodeIdToTerminalId(n NodeId) TerminalId {
	if !t.hasExplicitTerminals {
		if n == t.RootNodeId() {
			return InvalidTerminalId
		}
		return TerminalId(n - 1)
	}
	if !t.isTerminal.Get(int(n)) {
		return InvalidTerminalId
	}
	return TerminalId(t.isTerminal.Rank1(int(n)))
}

// TerminalIdToNodeId is the inverse of NodeIdToTerminalId.
func (t *Trie[S, V]) TerminalIdToNodeId(term TerminalId) NodeId {
	if !t.hasExplicitTerminals {
		return NodeId(term) + 1
	}
	pos := t.isTerminal.Select1(int(term))
	if pos < 0 {
		return InvalidNodeId
	}
	return NodeId(pos)
}

// TerminalIdToValue returns the value stored at terminal-id term.
func (t *Trie[S, V]) TerminalIdToValue(term TerminalId) V {
	return t.values[term]
}

// NumTerminals returns the number of terminals (value-bearing
// nodes).
func (t *Trie[S, V]) NumTerminals() int { return len(t.values) }

// KeyToValue is a convenience wrapper: KeyToNodeId -> terminal-id ->
// value. ok is false if key does not resolve to a terminal.
func (t *Trie[S, V]) KeyToValue(key []S) (value V, ok bool) {
	n := t.KeyToNodeId(key)
	if n == InvalidNodeId {
		return value, false
	}
	term := t.NodeIdToTerminalId(n)
	if term == InvalidTerminalId {
		return value, false
	}
	return t.values[term], true
}

// WriteTo serializes the trie block per §6.2: shape bit-vector,
// label vector, optional is-terminal bit-vector, value vector.
func (t *Trie[S, V]) WriteTo(w io.Writer) error {
	if err := t.shape.WriteTo(w); err != nil {
		return fmt.Errorf("trie: writing shape: %w", err)
	}
	labels := Vector[S]{items: t.labels}
	if err := labels.WriteTo(w); err != nil {
		return fmt.Errorf("trie: writing labels: %w", err)
	}
	if t.hasExplicitTerminals {
		if err := t.isTerminal.WriteTo(w); err != nil {
			return fmt.Errorf("trie: writing is_terminal: %w", err)
		}
	}
	values := Vector[V]{items: t.values}
	if err := values.WriteTo(w); err != nil {
		return fmt.Errorf("trie: writing values: %w", err)
	}
	return nil
}

// ReadTrie deserializes a trie block written by WriteTo. The caller
// must know from context whether the block carries an explicit
// is-terminal bit-vector (Lexicon: yes; NgramModel: no).
func ReadTrie[S cmp.Ordered, V any](r io.Reader, hasExplicitTerminals bool) (*Trie[S, V], error) {
	t := &Trie[S, V]{hasExplicitTerminals: hasExplicitTerminals, shape: &BitVector{}}
	if err := t.shape.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("trie: reading shape: %w", err)
	}
	var labels Vector[S]
	if err := labels.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("trie: reading labels: %w", err)
	}
	t.labels = labels.items
	if hasExplicitTerminals {
		t.isTerminal = &BitVector{}
		if err := t.isTerminal.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("trie: reading is_terminal: %w", err)
		}
	}
	var values Vector[V]
	if err := values.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("trie: reading values: %w", err)
	}
	t.values = values.items
	return t, nil
}
