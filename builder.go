package fslm

// Builder accumulates unigrams and n-grams (typically read from an
// ARPA file by arpa.go) and freezes them into an LM. Grounded on
// original_source/builder.go's shape: validate incoming n-grams the
// way a production ingestion path would (glog.Fatalf for malformed
// input, glog.Warningf for suspicious-but-legal input), accumulate
// into a staging structure, and only pay the real construction cost
// once at Build time.

import (
	"flag"
	"fmt"

	"github.com/golang/glog"
)

// log0Threshold mirrors original_source/basic.go's "fslm.log0" flag:
// any incoming weight at or below this value is treated as log(0)
// rather than stored verbatim.
var log0Threshold = Weight(-99)

func init() {
	flag.Var(&log0Threshold, "fslm.log0", "treat weight <= this as log(0)")
}

type pendingNgram struct {
	context []string
	word    string
	weight  Weight
	backoff Weight
}

// Builder is the mutable staging area for LM construction. The zero
// value is not usable; construct with NewBuilder.
type Builder struct {
	params Params

	unigrams    []Unigram
	seenUnigram map[string]bool
	haveUnk     bool
	unkLogProb  Weight

	ngrams []pendingNgram
}

// NewBuilder returns an empty Builder that will produce an LM with
// the given params.
func NewBuilder(params Params) *Builder {
	return &Builder{params: params, seenUnigram: make(map[string]bool)}
}

// AddNgram adds one n-gram entry: context is the history (oldest
// first), word is the predicted term, weight is its conditional
// log-probability, and backOff is its back-off weight (ignored
// unless the builder's params enable backoff weights). The order in
// which n-grams of different lengths are added does not matter,
// except that every n-gram's strict prefixes must eventually be
// added too (see NgramModel's denseness requirement) — in practice
// this just means "parse the ARPA file's sections in order", which
// arpa.go already does.
func (b *Builder) AddNgram(context []string, word string, weight Weight, backOff Weight) {
	if weight <= log0Threshold {
		weight = Log0
	}
	if backOff <= log0Threshold {
		backOff = Log0
	}

	if len(context) > 0 {
		if context[0] == reservedEOS {
			glog.Fatalf("fslm: end-of-sentence in context %q", context)
		}
		for _, w := range context[1:] {
			if w == reservedBOS {
				glog.Fatalf("fslm: begin-of-sentence not in the beginning of context %q", context)
			}
			if w == reservedEOS {
				glog.Fatalf("fslm: end-of-sentence in context %q", context)
			}
		}
	}
	if len(context) > 0 && word == reservedBOS && weight > -10 {
		glog.Warningf("fslm: non-unigram ending in %q with weight %g (should be -inf or absent)", word, weight)
	}
	if word == reservedEOS && backOff != 0 {
		glog.Warningf("fslm: non-zero back-off %g for an n-gram ending in %q", backOff, word)
	}

	if len(context) == 0 {
		b.addUnigram(word, weight)
		return
	}
	b.ngrams = append(b.ngrams, pendingNgram{context: append([]string(nil), context...), word: word, weight: weight, backoff: backOff})
}

func (b *Builder) addUnigram(word string, weight Weight) {
	if word == reservedUNK {
		b.haveUnk = true
		b.unkLogProb = weight
		return
	}
	if IsReservedTerm(word) {
		// <S>, </S>, <NONE> unigrams are dropped, whatever weight the
		// ARPA source lists: the lexicon may not hold reserved terms,
		// and NgramModel gives these ids its own default value.
		return
	}
	if b.seenUnigram[word] {
		glog.Warningf("fslm: duplicate unigram %q", word)
		return
	}
	b.seenUnigram[word] = true
	b.unigrams = append(b.unigrams, Unigram{Term: word, LogProb: weight})
}

// Build freezes the accumulated unigrams/n-grams into an LM. It
// returns an error (rather than panicking) on data problems a
// malformed or inconsistent ARPA file could trigger: denseness
// violations in the n-gram trie, or a Lexicon build failure.
func (b *Builder) Build() (*LM, error) {
	lex, err := BuildLexicon(b.unigrams, b.params.QuantizerRange, int(b.params.MaxNumTermIds), b.params.EnablePrefixUnigrams)
	if err != nil {
		return nil, fmt.Errorf("fslm: Builder.Build: %w", err)
	}

	entries := make([]NgramEntry, 0, len(b.unigrams)+len(b.ngrams)+1)
	if b.haveUnk {
		entries = append(entries, NgramEntry{Terms: []TermId{UNK}, LogProb: b.unkLogProb})
	}
	droppedUnigrams := 0
	for _, u := range b.unigrams {
		id := lex.TermToTermId(u.Term)
		if id == UNK {
			// Excluded by MaxNumTermIds: this term has no external
			// term-id, so it must not be keyed into the ngram trie as
			// UNK, which would collide with the dedicated <UNK> entry.
			droppedUnigrams++
			continue
		}
		entries = append(entries, NgramEntry{Terms: []TermId{id}, LogProb: u.LogProb})
	}
	if droppedUnigrams > 0 && glog.V(1) {
		glog.Infof("fslm: dropped %d unigrams excluded from the external term-id mapping", droppedUnigrams)
	}

	dropped := 0
	for _, e := range b.ngrams {
		ids := make([]TermId, 0, len(e.context)+1)
		hasUnk := false
		for _, w := range e.context {
			id := lex.TermToTermId(w)
			if id == UNK {
				hasUnk = true
			}
			ids = append(ids, id)
		}
		wordId := lex.TermToTermId(e.word)
		if wordId == UNK {
			hasUnk = true
		}
		ids = append(ids, wordId)
		if hasUnk {
			dropped++
			continue
		}
		entries = append(entries, NgramEntry{Terms: ids, LogProb: e.weight, Backoff: e.backoff})
	}
	if dropped > 0 && glog.V(1) {
		glog.Infof("fslm: dropped %d n-grams containing an out-of-vocabulary term", dropped)
	}

	ngrams, err := BuildNgramModel(entries, b.params.QuantizerRange, b.params.HasBackoffWeights)
	if err != nil {
		return nil, fmt.Errorf("fslm: Builder.Build: %w", err)
	}
	return NewLM(lex, ngrams, b.params), nil
}
