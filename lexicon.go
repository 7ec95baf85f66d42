package fslm

// Lexicon wraps a LOUDS trie over UTF-8 bytes, carrying a quantized
// unigram log-probability per terminal, an optional sparse
// prefix-value table ("best completion from here"), and an optional
// compact external term-id mapping for the most frequent terms.
// Grounded line-for-line on original_source/louds-lexicon.{h,cc}; the
// caller-supplied-output-slice GetChildren mirrors
// original_source/louds-lexicon-adapter.cc's reusable scratch
// buffers.

import (
	"fmt"
	"io"
	"sort"
	"unicode/utf8"
)

// Unigram is one (term, log-probability) pair fed to BuildLexicon.
type Unigram struct {
	Term    string
	LogProb Weight
}

// Lexicon is a frozen, queryable dictionary of terms.
type Lexicon struct {
	trie      *Trie[byte, uint8]
	quantizer EqualSizeBinQuantizer

	maxNumTermIds int
	hasTermIds    bool
	termIds       *BitVector // over terminal-ids; set by BuildLexicon iff maxNumTermIds > 0, by ReadLexicon iff some terminal has an id

	hasPrefixUnigrams bool
	prefixValues      *BitVector // over node-ids
	prefixVal         *Vector[uint8]
}

// LexiconNode is the decoder-facing handle into the trie: an edge
// label paired with the node-id it leads to.
type LexiconNode struct {
	Label byte
	Id    NodeId
}

// BuildLexicon builds a Lexicon from unigrams. quantizerRange is the
// quantizer's R (log-probabilities live in [-R, 0]). maxNumTermIds,
// when > 0, bounds how many of the most probable terms receive a
// compact external term-id (see TerminalIdToTermId); 0 disables the
// external mapping (every terminal gets its own id). hasPrefixUnigrams
// enables the prefix-value table.
//
// Panics if any unigram's term is one of the four reserved surface
// forms (§3, §7: a build-time invariant, not a recoverable error).
func BuildLexicon(unigrams []Unigram, quantizerRange float32, maxNumTermIds int, hasPrefixUnigrams bool) (*Lexicon, error) {
	q := NewEqualSizeBinQuantizer(quantizerRange)
	entries := make([]Entry[byte, uint8], 0, len(unigrams))
	for _, u := range unigrams {
		if IsReservedTerm(u.Term) {
			panic(fmt.Sprintf("fslm: BuildLexicon: reserved term %q may not appear as a unigram", u.Term))
		}
		entries = append(entries, Entry[byte, uint8]{
			Key:   []byte(u.Term),
			Value: q.Encode(float32(-u.LogProb)),
		})
	}
	trie, err := BuildTrie(entries, true)
	if err != nil {
		return nil, fmt.Errorf("fslm: BuildLexicon: %w", err)
	}

	lex := &Lexicon{trie: trie, quantizer: q, maxNumTermIds: maxNumTermIds, hasPrefixUnigrams: hasPrefixUnigrams}

	if maxNumTermIds > 0 {
		lex.buildTermIds(unigrams)
	}
	if hasPrefixUnigrams {
		lex.buildPrefixValues(unigrams)
	}
	return lex, nil
}

func (lex *Lexicon) buildTermIds(unigrams []Unigram) {
	marked := make([]bool, lex.trie.NumTerminals())
	order := make([]Unigram, len(unigrams))
	copy(order, unigrams)
	sort.SliceStable(order, func(i, j int) bool { return order[i].LogProb > order[j].LogProb })

	topN := lex.maxNumTermIds - int(FirstUnreserved)
	if topN > len(order) {
		topN = len(order)
	}
	for i := 0; i < topN; i++ {
		n := lex.trie.KeyToNodeId([]byte(order[i].Term))
		if n == InvalidNodeId {
			continue
		}
		term := lex.trie.NodeIdToTerminalId(n)
		if term != InvalidTerminalId {
			marked[term] = true
		}
	}

	lex.hasTermIds = true
	lex.termIds = NewBitVector()
	for _, m := range marked {
		lex.termIds.PushBack(m)
	}
	lex.termIds.Build()
}

func (lex *Lexicon) buildPrefixValues(unigrams []Unigram) {
	maxLogp := make(map[string]Weight)
	for _, u := range unigrams {
		term := u.Term
		for i := 0; i <= len(term); {
			p := term[:i]
			if cur, ok := maxLogp[p]; !ok || u.LogProb > cur {
				maxLogp[p] = u.LogProb
			}
			if i == len(term) {
				break
			}
			_, size := utf8.DecodeRuneInString(term[i:])
			if size == 0 {
				size = 1
			}
			i += size
		}
	}

	numNodes := lex.trie.NumNodes()
	keyOf := make([]string, numNodes)
	// nearestVal/hasNearestVal track the value at the nearest
	// ancestor-or-self key that actually has an entry in maxLogp,
	// skipping over trie nodes that fall mid-UTF-8-character (and so
	// have no entry of their own, since maxLogp is only populated at
	// rune-boundary-aligned prefixes). Node ids are BFS-ordered, so a
	// node's parent always has a smaller id and is already filled in
	// by the time we reach it.
	nearestVal := make([]Weight, numNodes)
	hasNearestVal := make([]bool, numNodes)
	lex.prefixValues = NewBitVector()
	lex.prefixVal = NewVector[uint8]()
	for n := 0; n < numNodes; n++ {
		id := NodeId(n)
		if id != lex.trie.RootNodeId() {
			keyOf[n] = keyOf[lex.trie.Parent(id)] + string(lex.trie.EdgeLabel(id))
		}
		val, ok := maxLogp[keyOf[n]]
		if ok {
			nearestVal[n], hasNearestVal[n] = val, true
		} else if id != lex.trie.RootNodeId() {
			p := lex.trie.Parent(id)
			nearestVal[n], hasNearestVal[n] = nearestVal[p], hasNearestVal[p]
		}
		if !ok {
			lex.prefixValues.PushBack(false)
			continue
		}
		record := id == lex.trie.RootNodeId()
		if !record {
			p := lex.trie.Parent(id)
			parentVal, parentOK := nearestVal[p], hasNearestVal[p]
			record = !parentOK || val != parentVal
		}
		if record {
			lex.prefixValues.PushBack(true)
			lex.prefixVal.PushBack(lex.quantizer.Encode(float32(-val)))
		} else {
			lex.prefixValues.PushBack(false)
		}
	}
	lex.prefixValues.Build()
}

// GetRootNode returns the trie's root as a LexiconNode.
func (lex *Lexicon) GetRootNode() LexiconNode {
	return LexiconNode{Label: 0, Id: lex.trie.RootNodeId()}
}

// GetChildren appends node's children to out, which is first
// truncated to length 0. Reuse the same out slice across calls to
// avoid allocating on the hot path (see DESIGN.md / spec §5).
func (lex *Lexicon) GetChildren(node NodeId, out *[]LexiconNode) {
	*out = (*out)[:0]
	before, through := lex.trie.degreeRange(node)
	first := NodeId(before + 1)
	for i := before; i < through; i++ {
		*out = append(*out, LexiconNode{Label: lex.trie.labels[i], Id: first + NodeId(i-before)})
	}
}

// TermLogProb reports whether node is a lexicon terminal and, if so,
// its (negated, decoded) log-probability.
func (lex *Lexicon) TermLogProb(node NodeId) (logp Weight, ok bool) {
	term := lex.trie.NodeIdToTerminalId(node)
	if term == InvalidTerminalId {
		return 0, false
	}
	return Weight(-lex.quantizer.Decode(lex.trie.TerminalIdToValue(term))), true
}

// PrefixLogProb reports whether node carries a recorded "best
// completion from here" value.
func (lex *Lexicon) PrefixLogProb(node NodeId) (logp Weight, ok bool) {
	if !lex.hasPrefixUnigrams || lex.prefixValues == nil {
		return 0, false
	}
	if !lex.prefixValues.Get(int(node)) {
		return 0, false
	}
	idx := lex.prefixValues.Rank1(int(node))
	return Weight(-lex.quantizer.Decode(lex.prefixVal.At(idx))), true
}

// TerminalIdToTermId maps a lexicon terminal-id to its external
// term-id, or UNK if the terminal did not make the cut for an
// external id.
func (lex *Lexicon) TerminalIdToTermId(term TerminalId) TermId {
	if lex.maxNumTermIds == 0 {
		return TermId(term) + FirstUnreserved
	}
	if !lex.hasTermIds || !lex.termIds.Get(int(term)) {
		return UNK
	}
	return TermId(lex.termIds.Rank1(int(term))) + FirstUnreserved
}

// TermToTermId maps a surface term to its term-id: reserved forms
// map to their reserved id; otherwise the term is looked up in the
// trie and, on a hit, mapped through TerminalIdToTermId. Any miss
// (not in the lexicon, or not among the top maxNumTermIds) returns
// UNK.
func (lex *Lexicon) TermToTermId(term string) TermId {
	if id, ok := ReservedTermToTermId(term); ok {
		return id
	}
	n := lex.trie.KeyToNodeId([]byte(term))
	if n == InvalidNodeId {
		return UNK
	}
	t := lex.trie.NodeIdToTerminalId(n)
	if t == InvalidTerminalId {
		return UNK
	}
	return lex.TerminalIdToTermId(t)
}

// TermLogProbForTerm looks up term directly by its surface form,
// combining KeyToNodeId and TermLogProb for callers (the query
// engine) that don't otherwise need a node-id.
func (lex *Lexicon) TermLogProbForTerm(term string) (Weight, bool) {
	n := lex.trie.KeyToNodeId([]byte(term))
	if n == InvalidNodeId {
		return 0, false
	}
	return lex.TermLogProb(n)
}

// TermIdToTerm is the (partial) inverse of TermToTermId: it succeeds
// for reserved ids and for ids that were actually assigned to a
// lexicon entry.
func (lex *Lexicon) TermIdToTerm(id TermId) (string, bool) {
	if s, ok := ReservedTermIdToTerm(id); ok {
		return s, true
	}
	if lex.maxNumTermIds == 0 {
		term := TerminalId(id - FirstUnreserved)
		if term < 0 || int(term) >= lex.trie.NumTerminals() {
			return "", false
		}
		n := lex.trie.TerminalIdToNodeId(term)
		return string(lex.trie.NodeIdToKey(n)), true
	}
	if !lex.hasTermIds {
		return "", false
	}
	rank := int(id - FirstUnreserved)
	if rank < 0 || rank >= lex.termIds.NumOnes() {
		return "", false
	}
	pos := lex.termIds.Select1(rank)
	if pos < 0 {
		return "", false
	}
	n := lex.trie.TerminalIdToNodeId(TerminalId(pos))
	return string(lex.trie.NodeIdToKey(n)), true
}

// WriteTo serializes the Lexicon block per §6.1 item 3.
func (lex *Lexicon) WriteTo(w io.Writer) error {
	if err := lex.trie.WriteTo(w); err != nil {
		return err
	}
	termIds := lex.termIds
	if termIds == nil {
		termIds = NewBitVector()
		termIds.Build()
	}
	if err := termIds.WriteTo(w); err != nil {
		return fmt.Errorf("lexicon: writing has_termids: %w", err)
	}
	prefixValues := lex.prefixValues
	if prefixValues == nil {
		prefixValues = NewBitVector()
		prefixValues.Build()
	}
	if err := prefixValues.WriteTo(w); err != nil {
		return fmt.Errorf("lexicon: writing has_prefix_values: %w", err)
	}
	prefixVal := lex.prefixVal
	if prefixVal == nil {
		prefixVal = NewVector[uint8]()
	}
	if err := prefixVal.WriteTo(w); err != nil {
		return fmt.Errorf("lexicon: writing prefix_values: %w", err)
	}
	var hasPrefix uint8
	if lex.hasPrefixUnigrams {
		hasPrefix = 1
	}
	if err := writeU8(w, hasPrefix); err != nil {
		return err
	}
	if err := writeF32(w, lex.quantizer.Range); err != nil {
		return err
	}
	return writeI32(w, int32(lex.maxNumTermIds))
}

// ReadLexicon deserializes a Lexicon block written by WriteTo.
func ReadLexicon(r io.Reader) (*Lexicon, error) {
	trie, err := ReadTrie[byte, uint8](r, true)
	if err != nil {
		return nil, fmt.Errorf("lexicon: reading trie: %w", err)
	}
	lex := &Lexicon{trie: trie}

	termIds := &BitVector{}
	if err := termIds.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("lexicon: reading has_termids: %w", err)
	}
	if termIds.NumOnes() > 0 {
		lex.termIds = termIds
		lex.hasTermIds = true
	}

	prefixValues := &BitVector{}
	if err := prefixValues.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("lexicon: reading has_prefix_values: %w", err)
	}
	var prefixVal Vector[uint8]
	if err := prefixVal.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("lexicon: reading prefix_values: %w", err)
	}
	hasPrefix, err := readU8(r)
	if err != nil {
		return nil, fmt.Errorf("lexicon: reading has_prefix_unigrams: %w", err)
	}
	lex.hasPrefixUnigrams = hasPrefix != 0
	if lex.hasPrefixUnigrams {
		lex.prefixValues = prefixValues
		lex.prefixVal = &prefixVal
	}

	r32, err := readF32(r)
	if err != nil {
		return nil, fmt.Errorf("lexicon: reading quantizer range: %w", err)
	}
	lex.quantizer = NewEqualSizeBinQuantizer(r32)

	maxIds, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("lexicon: reading max_num_term_ids: %w", err)
	}
	lex.maxNumTermIds = int(maxIds)
	return lex, nil
}
