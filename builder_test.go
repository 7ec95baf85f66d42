package fslm

import "testing"

// TestBuilderExcludedUnigramsDoNotCorruptUnk exercises the
// MaxNumTermIds > 0 configuration: unigrams outside the top-N cut map
// to UNK via Lexicon.TermToTermId, and Build must not key any of them
// into the n-gram trie as UNK, since that would collide with (and
// overwrite) the dedicated <UNK> unigram entry.
func TestBuilderExcludedUnigramsDoNotCorruptUnk(t *testing.T) {
	params := Params{QuantizerRange: testQuantizerRange, MaxNumTermIds: 6} // top (6-4)=2 terms get ids.
	b := NewBuilder(params)

	b.AddNgram(nil, "<UNK>", -3.0, 0)
	b.AddNgram(nil, "the", -0.1, 0) // kept: top 2 by logp.
	b.AddNgram(nil, "cat", -0.2, 0) // kept: top 2 by logp.
	b.AddNgram(nil, "dog", -5.0, 0) // excluded: maps to UNK.
	b.AddNgram(nil, "fox", -6.0, 0) // excluded: maps to UNK.
	b.AddNgram(nil, "owl", -7.0, 0) // excluded: maps to UNK.

	lm, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if id := lm.Lexicon().TermToTermId("dog"); id != UNK {
		t.Fatalf(`TermToTermId("dog") = %d; want UNK (excluded by MaxNumTermIds)`, id)
	}

	logp, match := lm.LookupConditionalLogProb(nil, []string{"<UNK>"})
	if match {
		t.Fatalf(`LookupConditionalLogProb("<UNK>") matched; want the UNK fallback (match=false)`)
	}
	closeTo(t, logp, -3.0, 0.15)

	// A genuinely kept term must still resolve to its own value, not
	// whatever excluded unigram happened to be appended last.
	theLogp, match := lm.LookupConditionalLogProb(nil, []string{"the"})
	if !match {
		t.Fatalf(`LookupConditionalLogProb("the") did not match`)
	}
	closeTo(t, theLogp, -0.1, 0.15)
}
