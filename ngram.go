package fslm

// NgramModel wraps a LOUDS trie over term-id sequences
// (has_explicit_terminals = false: every node, including every
// n-gram prefix, carries a quantized conditional log-probability)
// plus an optional sparse backoff-weight table. Grounded on spec
// §4.6 and original_source/louds-lm.cc's Build() (the
// keys_to_values / keys_to_backoffs construction sequence).

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// NgramEntry is one n-gram observation: Terms is in natural order
// (history first, target last); LogProb is the n-gram's conditional
// log-probability; Backoff is its back-off weight (ignored unless
// the model is built with backoff weights enabled).
type NgramEntry struct {
	Terms   []TermId
	LogProb Weight
	Backoff Weight
}

// NgramModel is a frozen n-gram trie with optional backoff weights.
type NgramModel struct {
	trie      *Trie[TermId, uint8]
	quantizer EqualSizeBinQuantizer
	maxN      int

	hasBackoff bool
	backoffHas *BitVector
	backoffVal *Vector[uint8]
}

func ngramKeyString(ids []TermId) string {
	b := make([]byte, len(ids)*4)
	for i, id := range ids {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(id))
	}
	return string(b)
}

// BuildNgramModel builds the n-gram trie from entries (already
// filtered by the caller to exclude any n-gram whose mapped term-ids
// include UNK, per §4.6 / §9). Reserved-term-id unigrams default to
// the quantizer's most negative representable log-probability
// (standing in for -inf, which an 8-bit quantizer cannot represent
// exactly) unless entries supplies an explicit UNK unigram, in which
// case that value is used instead. This default is load-bearing: it
// is what lets GetBackoffCost fast-path single-term histories
// (terminal-id == term-id at depth 1), and it gives root-level
// lookups for BOS/EOS/NONE a well-defined miss.
//
// entries must be "dense": every prefix of every n-gram must itself
// appear as an entry (standard for ARPA-style back-off model files),
// since has_explicit_terminals=false requires every trie node to
// carry a value.
func BuildNgramModel(entries []NgramEntry, quantizerRange float32, hasBackoff bool) (*NgramModel, error) {
	q := NewEqualSizeBinQuantizer(quantizerRange)

	type keyed struct {
		key     []TermId
		logp    uint8
		backoff uint8
		hasBO   bool
	}
	byKey := make(map[string]keyed)

	for _, id := range []TermId{BOS, EOS, UNK, NONE} {
		k := []TermId{id}
		byKey[ngramKeyString(k)] = keyed{key: k, logp: q.Encode(float32(-Log0))}
	}

	maxN := 1
	for _, e := range entries {
		if len(e.Terms) == 0 {
			return nil, fmt.Errorf("fslm: BuildNgramModel: empty n-gram")
		}
		if len(e.Terms) > maxN {
			maxN = len(e.Terms)
		}
		kv := keyed{key: e.Terms, logp: q.Encode(float32(-e.LogProb))}
		if hasBackoff {
			kv.backoff = q.Encode(float32(-e.Backoff))
			kv.hasBO = true
		}
		byKey[ngramKeyString(e.Terms)] = kv
	}

	trieEntries := make([]Entry[TermId, uint8], 0, len(byKey))
	backoffEntries := make(map[string]uint8)
	keyOf := make(map[string][]TermId, len(byKey))
	for ks, kv := range byKey {
		trieEntries = append(trieEntries, Entry[TermId, uint8]{Key: kv.key, Value: kv.logp})
		keyOf[ks] = kv.key
		if kv.hasBO {
			backoffEntries[ks] = kv.backoff
		}
	}

	trie, err := BuildTrie(trieEntries, false)
	if err != nil {
		return nil, fmt.Errorf("fslm: BuildNgramModel: %w", err)
	}

	m := &NgramModel{trie: trie, quantizer: q, maxN: maxN}
	if hasBackoff {
		m.buildBackoff(backoffEntries, keyOf)
	}
	return m, nil
}

func (m *NgramModel) buildBackoff(backoffEntries map[string]uint8, keyOf map[string][]TermId) {
	type rec struct {
		term TerminalId
		val  uint8
	}
	var recs []rec
	for ks, val := range backoffEntries {
		if val == 0 {
			// Only non-zero quantized weights are stored (§3).
			continue
		}
		n := m.trie.KeyToNodeId(keyOf[ks])
		if n == InvalidNodeId {
			continue
		}
		term := m.trie.NodeIdToTerminalId(n)
		if term == InvalidTerminalId {
			continue
		}
		recs = append(recs, rec{term, val})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].term < recs[j].term })

	m.hasBackoff = true
	m.backoffHas = NewBitVector()
	m.backoffVal = NewVector[uint8]()
	last := TerminalId(-1)
	for _, r := range recs {
		for last+1 < r.term {
			m.backoffHas.PushBack(false)
			last++
		}
		m.backoffHas.PushBack(true)
		m.backoffVal.PushBack(r.val)
		last = r.term
	}
	for int(last)+1 < m.trie.NumTerminals() {
		m.backoffHas.PushBack(false)
		last++
	}
	m.backoffHas.Build()
}

// MaxN returns the longest n-gram order observed during Build.
func (m *NgramModel) MaxN() int { return m.maxN }

// KeyToNodeId descends the trie for key (natural order).
func (m *NgramModel) KeyToNodeId(key []TermId) NodeId { return m.trie.KeyToNodeId(key) }

// NodeIdToTerminalId returns n's terminal-id (every node is a
// terminal in this trie).
func (m *NgramModel) NodeIdToTerminalId(n NodeId) TerminalId { return m.trie.NodeIdToTerminalId(n) }

// KeyToValue returns the decoded (negated) conditional log-probability
// stored at key, if key resolves to a node in the trie.
func (m *NgramModel) KeyToValue(key []TermId) (Weight, bool) {
	v, ok := m.trie.KeyToValue(key)
	if !ok {
		return 0, false
	}
	return Weight(-m.quantizer.Decode(v)), true
}

// ValueAtNode returns the decoded (negated) conditional
// log-probability stored at node n.
func (m *NgramModel) ValueAtNode(n NodeId) Weight {
	term := m.trie.NodeIdToTerminalId(n)
	return Weight(-m.quantizer.Decode(m.trie.TerminalIdToValue(term)))
}

// BackoffWeight returns the (negated, decoded) backoff weight stored
// for terminal-id term, if any. ok is false when there is no backoff
// table, term is out of range, or the stored weight is the implicit
// zero default.
func (m *NgramModel) BackoffWeight(term TerminalId) (Weight, bool) {
	if !m.hasBackoff || term < 0 || int(term) >= m.backoffHas.Size() {
		return 0, false
	}
	if !m.backoffHas.Get(int(term)) {
		return 0, false
	}
	idx := m.backoffHas.Rank1(int(term))
	return Weight(-m.quantizer.Decode(m.backoffVal.At(idx))), true
}

// HasBackoffWeights reports whether the model carries a backoff
// table at all.
func (m *NgramModel) HasBackoffWeights() bool { return m.hasBackoff }

// FirstChildNodeId, GetChildren and RootNodeId expose the underlying
// trie's navigation for the query engine in lm.go.
func (m *NgramModel) RootNodeId() NodeId               { return m.trie.RootNodeId() }
func (m *NgramModel) FirstChildNodeId(n NodeId) NodeId  { return m.trie.FirstChildNodeId(n) }
func (m *NgramModel) GetChildren(n NodeId, outLabels *[]TermId, outChildren *[]NodeId) {
	m.trie.GetChildren(n, outLabels, outChildren)
}

// DumpNgrams performs a depth-first walk of the n-gram trie,
// emitting one NgramEntry per visited node (including unigrams).
// Back-off is always reported as 0: the dump reconstructs
// logp-by-depth, not the separate sparse backoff table, which is
// indexed by terminal-id rather than by the dumped path (matching
// original_source/louds-lm.cc::DumpNgrams).
func (m *NgramModel) DumpNgrams() []NgramEntry {
	var out []NgramEntry
	var walk func(n NodeId, prefix []TermId)
	walk = func(n NodeId, prefix []TermId) {
		var labels []TermId
		var children []NodeId
		m.trie.GetChildren(n, &labels, &children)
		for i, child := range children {
			terms := append(append([]TermId{}, prefix...), labels[i])
			out = append(out, NgramEntry{Terms: terms, LogProb: m.ValueAtNode(child)})
			walk(child, terms)
		}
	}
	walk(m.trie.RootNodeId(), nil)
	return out
}

// WriteTo serializes the NgramLoudsTrie block, max_n, and (if
// present) the backoff block, per §6.1 items 4-6.
func (m *NgramModel) WriteTo(w io.Writer) error {
	if err := m.trie.WriteTo(w); err != nil {
		return fmt.Errorf("ngram: writing trie: %w", err)
	}
	if err := writeI32(w, int32(m.maxN)); err != nil {
		return err
	}
	var hasBO uint8
	if m.hasBackoff {
		hasBO = 1
	}
	if err := writeU8(w, hasBO); err != nil {
		return err
	}
	if m.hasBackoff {
		if err := m.backoffHas.WriteTo(w); err != nil {
			return fmt.Errorf("ngram: writing has_backoff_weights: %w", err)
		}
		if err := m.backoffVal.WriteTo(w); err != nil {
			return fmt.Errorf("ngram: writing backoff_weights: %w", err)
		}
	}
	return nil
}

// ReadNgramModel deserializes an NgramModel written by WriteTo.
// quantizerRange must match the value recorded in the container's
// params blob (the n-gram trie shares the lexicon's quantizer
// range).
func ReadNgramModel(r io.Reader, quantizerRange float32) (*NgramModel, error) {
	trie, err := ReadTrie[TermId, uint8](r, false)
	if err != nil {
		return nil, fmt.Errorf("ngram: reading trie: %w", err)
	}
	maxN, err := readI32(r)
	if err != nil {
		return nil, fmt.Errorf("ngram: reading max_n: %w", err)
	}
	hasBO, err := readU8(r)
	if err != nil {
		return nil, fmt.Errorf("ngram: reading has_backoff_weights flag: %w", err)
	}
	m := &NgramModel{trie: trie, quantizer: NewEqualSizeBinQuantizer(quantizerRange), maxN: int(maxN)}
	if hasBO != 0 {
		m.hasBackoff = true
		m.backoffHas = &BitVector{}
		if err := m.backoffHas.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("ngram: reading has_backoff_weights: %w", err)
		}
		var backoffVal Vector[uint8]
		if err := backoffVal.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("ngram: reading backoff_weights: %w", err)
		}
		m.backoffVal = &backoffVal
	}
	return m, nil
}
