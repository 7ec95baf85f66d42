package fslm

// Query engine: conditional log-probability lookup with stupid/Katz
// backoff, and bounded-beam next-word prediction. Grounded on spec
// §4.7 and original_source/louds-lm.cc (BackoffToInVocabTermIds,
// GetBackoffCost, LookupNextWords) for the exact backoff and beam
// semantics; the beam itself is a container/heap min-heap, in the
// style the rest of the standard library tooling in this package
// already leans on.

import (
	"container/heap"
	"strings"
)

const (
	kMaxUnigramPredictions           = 10
	kUnigramPredictionBackoff Weight = -100.0
)

// Params holds the tunables recorded in the container's params blob
// (§6.1 item 2). It is gob-encoded as-is by container.go.
type Params struct {
	QuantizerRange                     float32
	HasBackoffWeights                  bool
	IncludeUnigramPredictions          bool
	EnablePrefixUnigrams               bool
	MaxNumTermIds                      int32
	UppercaseUnigramExtraBackoffWeight Weight
	MinUnigramLogpForPredictions       Weight
	FormatVersion                      int32
}

type unigramPrediction struct {
	term TermId
	logp Weight
}

// LM is the frozen, queryable language model: a Lexicon, an n-gram
// trie, and the params that govern backoff/prediction behavior. The
// zero value is not usable; construct with NewLM.
type LM struct {
	lexicon *Lexicon
	ngrams  *NgramModel
	params  Params

	topUnigramPredictions []unigramPrediction
}

// NewLM assembles an LM from an already-built Lexicon and NgramModel.
// top_unigram_predictions_ is computed once here, from the n-gram
// trie's depth-1 (unigram) entries, excluding reserved term-ids.
func NewLM(lexicon *Lexicon, ngrams *NgramModel, params Params) *LM {
	lm := &LM{lexicon: lexicon, ngrams: ngrams, params: params}
	lm.computeTopUnigramPredictions()
	return lm
}

func (lm *LM) computeTopUnigramPredictions() {
	var labels []TermId
	var children []NodeId
	lm.ngrams.GetChildren(lm.ngrams.RootNodeId(), &labels, &children)

	cands := make([]unigramPrediction, 0, len(children))
	for i, child := range children {
		term := labels[i]
		if term < FirstUnreserved {
			continue
		}
		cands = append(cands, unigramPrediction{term: term, logp: lm.ngrams.ValueAtNode(child)})
	}
	sortUnigramPredictionsDesc(cands)
	if len(cands) > kMaxUnigramPredictions {
		cands = cands[:kMaxUnigramPredictions]
	}
	lm.topUnigramPredictions = cands
}

func sortUnigramPredictionsDesc(cands []unigramPrediction) {
	for i := 1; i < len(cands); i++ {
		for j := i; j > 0 && cands[j].logp > cands[j-1].logp; j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}

// Lexicon returns the LM's lexicon.
func (lm *LM) Lexicon() *Lexicon { return lm.lexicon }

// Ngrams returns the LM's n-gram model.
func (lm *LM) Ngrams() *NgramModel { return lm.ngrams }

// Params returns the LM's tunables.
func (lm *LM) Params() Params { return lm.params }

// DumpNgrams delegates to the n-gram model.
func (lm *LM) DumpNgrams() []NgramEntry { return lm.ngrams.DumpNgrams() }

// BackoffToInVocabTermIds walks terms right-to-left mapping each to
// its term-id via the lexicon, then continues into precedingTermIds
// (already mapped) right-to-left. It stops as soon as it would add a
// UNK, unless that UNK is the very first one considered (the overall
// last term) and preserveLastTerm is set, in which case that one UNK
// is still included. The result is capped at capN entries (no cap if
// capN <= 0) and returned in natural (oldest-first) order.
func (lm *LM) BackoffToInVocabTermIds(precedingTermIds []TermId, terms []string, capN int, preserveLastTerm bool) []TermId {
	var rev []TermId
	isFirst := true
	stopped := false

	consider := func(id TermId) {
		if stopped {
			return
		}
		if id == UNK && !(isFirst && preserveLastTerm) {
			stopped = true
			return
		}
		rev = append(rev, id)
		isFirst = false
		if capN > 0 && len(rev) >= capN {
			stopped = true
		}
	}

	for i := len(terms) - 1; i >= 0 && !stopped; i-- {
		consider(lm.lexicon.TermToTermId(terms[i]))
	}
	for i := len(precedingTermIds) - 1; i >= 0 && !stopped; i-- {
		consider(precedingTermIds[i])
	}

	out := make([]TermId, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// GetBackoffCost returns the penalty for dropping the leading token
// of historyTermIds. Without a backoff table this is always the flat
// stupid-backoff penalty; with one, it is the stored weight for
// historyTermIds (0 if none is stored). The single-term case uses the
// fast path documented on NgramModel: the term-id is the terminal-id
// of that depth-1 node, by construction.
func (lm *LM) GetBackoffCost(historyTermIds []TermId) Weight {
	if !lm.ngrams.HasBackoffWeights() {
		return StupidBackoffLn
	}
	var term TerminalId
	if len(historyTermIds) == 1 {
		term = TerminalId(historyTermIds[0])
	} else {
		n := lm.ngrams.KeyToNodeId(historyTermIds)
		if n == InvalidNodeId {
			return 0
		}
		term = lm.ngrams.NodeIdToTerminalId(n)
	}
	if w, ok := lm.ngrams.BackoffWeight(term); ok {
		return w
	}
	return 0
}

// LookupConditionalLogProb computes P(terms[last] | ...context...)
// per §4.7. It returns the log-probability and whether a genuine
// match was found (false means the result falls back to an UNK
// estimate).
func (lm *LM) LookupConditionalLogProb(precedingTermIds []TermId, terms []string) (logp Weight, match bool) {
	maxN := lm.ngrams.MaxN()
	termIds := lm.BackoffToInVocabTermIds(precedingTermIds, terms, maxN, true)
	if len(termIds) == 0 {
		v, _ := lm.ngrams.KeyToValue([]TermId{UNK})
		return v, false
	}

	var backoffCost Weight
	if !lm.ngrams.HasBackoffWeights() {
		totalTermCount := len(terms) + len(precedingTermIds)
		n := maxN
		if totalTermCount < n {
			n = totalTermCount
		}
		backoffCost = Weight(n-len(termIds)) * StupidBackoffLn
	}

	for len(termIds) > 1 {
		if v, ok := lm.ngrams.KeyToValue(termIds); ok {
			return v + backoffCost, true
		}
		backoffCost += lm.GetBackoffCost(termIds[:len(termIds)-1])
		termIds = termIds[1:]
	}

	var tailString string
	if len(terms) > 0 {
		tailString = terms[len(terms)-1]
	} else if s, ok := lm.lexicon.TermIdToTerm(termIds[0]); ok {
		tailString = s
	}
	if tailString != "" && tailString != strings.ToLower(tailString) {
		backoffCost += lm.params.UppercaseUnigramExtraBackoffWeight
	}

	if termIds[0] == UNK {
		if v, ok := lm.lexicon.TermLogProbForTerm(tailString); ok {
			return v + backoffCost, true
		}
		v, _ := lm.ngrams.KeyToValue([]TermId{UNK})
		return v + backoffCost, false
	}

	v, _ := lm.ngrams.KeyToValue([]TermId{termIds[0]})
	return v + backoffCost, true
}

// beamEntry is one candidate in the bounded prediction beam.
type beamEntry struct {
	term TermId
	logp Weight
}

// predictionBeam is a bounded min-heap keyed on logp: the smallest
// logp is always at the root, so a full beam can test "is this
// candidate better than my current worst" in O(1) and evict in
// O(log maxSize).
type predictionBeam struct {
	entries []beamEntry
	maxSize int
}

func (b *predictionBeam) Len() int            { return len(b.entries) }
func (b *predictionBeam) Less(i, j int) bool  { return b.entries[i].logp < b.entries[j].logp }
func (b *predictionBeam) Swap(i, j int)       { b.entries[i], b.entries[j] = b.entries[j], b.entries[i] }
func (b *predictionBeam) Push(x interface{})  { b.entries = append(b.entries, x.(beamEntry)) }
func (b *predictionBeam) Pop() interface{} {
	old := b.entries
	n := len(old)
	e := old[n-1]
	b.entries = old[:n-1]
	return e
}

func (b *predictionBeam) offer(e beamEntry) {
	if b.maxSize <= 0 {
		return
	}
	if len(b.entries) < b.maxSize {
		heap.Push(b, e)
		return
	}
	if e.logp > b.entries[0].logp {
		heap.Pop(b)
		heap.Push(b, e)
	}
}

// lookupNextWords pushes key's children that aren't already in the
// beam into it, applying backoffCost and (for histories longer than
// one term) the minimum-unigram-logp prediction filter. Returns false
// if key does not resolve to a node at all.
func (lm *LM) lookupNextWords(key []TermId, bm *predictionBeam, backoffCost Weight) bool {
	n := lm.ngrams.KeyToNodeId(key)
	if n == InvalidNodeId {
		return false
	}

	alreadyPredicted := make(map[TermId]bool, bm.Len())
	for _, e := range bm.entries {
		alreadyPredicted[e.term] = true
	}

	var labels []TermId
	var children []NodeId
	lm.ngrams.GetChildren(n, &labels, &children)
	for i, child := range children {
		term := labels[i]
		if alreadyPredicted[term] {
			continue
		}
		if len(key) > 1 {
			uv, ok := lm.ngrams.KeyToValue([]TermId{term})
			if !ok || uv < lm.params.MinUnigramLogpForPredictions {
				continue
			}
		}
		bm.offer(beamEntry{term: term, logp: lm.ngrams.ValueAtNode(child) + backoffCost})
	}
	return true
}

// PredictNextWords merges up to maxResults next-word predictions for
// the given context into results (term string -> log-probability),
// per §4.7's next-word-prediction algorithm.
func (lm *LM) PredictNextWords(precedingTermIds []TermId, terms []string, maxResults int, results map[string]Weight) {
	contextIds := lm.BackoffToInVocabTermIds(precedingTermIds, terms, lm.ngrams.MaxN()-1, false)
	bm := &predictionBeam{maxSize: maxResults}

	var backoffCost Weight
	for len(contextIds) > 0 {
		lm.lookupNextWords(contextIds, bm, backoffCost)
		backoffCost += lm.GetBackoffCost(contextIds)
		contextIds = contextIds[1:]
	}

	for _, e := range bm.entries {
		if e.term < FirstUnreserved {
			continue
		}
		term, ok := lm.lexicon.TermIdToTerm(e.term)
		if !ok {
			continue
		}
		results[term] = e.logp
	}

	if lm.params.IncludeUnigramPredictions {
		for _, u := range lm.topUnigramPredictions {
			if len(results) >= maxResults {
				break
			}
			term, ok := lm.lexicon.TermIdToTerm(u.term)
			if !ok {
				continue
			}
			if _, exists := results[term]; exists {
				continue
			}
			results[term] = u.logp + kUnigramPredictionBackoff
		}
	}
}
