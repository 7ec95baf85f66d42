package fslm

import (
	"bytes"
	"testing"
)

func TestContainerRoundTrip(t *testing.T) {
	unigrams := []Unigram{
		{Term: "the", LogProb: -1.0},
		{Term: "cat", LogProb: -3.0},
	}
	lex, err := BuildLexicon(unigrams, testQuantizerRange, 0, true)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	theId := lex.TermToTermId("the")
	catId := lex.TermToTermId("cat")
	entries := []NgramEntry{
		{Terms: []TermId{theId}, LogProb: -1.0, Backoff: -0.3},
		{Terms: []TermId{catId}, LogProb: -3.0},
		{Terms: []TermId{theId, catId}, LogProb: -1.5},
	}
	ngrams, err := BuildNgramModel(entries, testQuantizerRange, true)
	if err != nil {
		t.Fatalf("BuildNgramModel: %v", err)
	}
	params := Params{
		QuantizerRange:                     testQuantizerRange,
		HasBackoffWeights:                  true,
		IncludeUnigramPredictions:          true,
		EnablePrefixUnigrams:               true,
		UppercaseUnigramExtraBackoffWeight: -0.5,
		MinUnigramLogpForPredictions:       -10,
		FormatVersion:                      1,
	}
	lm := NewLM(lex, ngrams, params)

	var buf bytes.Buffer
	if err := Save(&buf, lm); err != nil {
		t.Fatalf("Save: %v", err)
	}

	lm2, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lm2.Params() != lm.Params() {
		t.Errorf("Params mismatch after round-trip: %+v vs %+v", lm2.Params(), lm.Params())
	}

	v1, match1 := lm.LookupConditionalLogProb(nil, []string{"the", "cat"})
	v2, match2 := lm2.LookupConditionalLogProb(nil, []string{"the", "cat"})
	if match1 != match2 || v1 != v2 {
		t.Errorf("LookupConditionalLogProb mismatch after round-trip: (%g,%v) vs (%g,%v)", v1, match1, v2, match2)
	}
}

func TestContainerRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	if _, err := Load(&buf); err == nil {
		t.Error("expected error for bad magic number")
	}
}
