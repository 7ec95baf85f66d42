package fslm

import (
	"bytes"
	"testing"
)

func TestLexiconRoundTripTerms(t *testing.T) {
	unigrams := []Unigram{
		{Term: "the", LogProb: -1.0},
		{Term: "cat", LogProb: -3.0},
		{Term: "a", LogProb: -2.0},
	}
	lex, err := BuildLexicon(unigrams, 20, 0, false)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	for _, u := range unigrams {
		id := lex.TermToTermId(u.Term)
		if id == UNK {
			t.Fatalf("TermToTermId(%q) = UNK", u.Term)
		}
		got, ok := lex.TermIdToTerm(id)
		if !ok || got != u.Term {
			t.Errorf("TermIdToTerm(TermToTermId(%q)) = (%q,%v)", u.Term, got, ok)
		}
	}
	if lex.TermToTermId("xyz") != UNK {
		t.Errorf("TermToTermId(%q) should be UNK", "xyz")
	}
}

func TestLexiconTermLogProb(t *testing.T) {
	unigrams := []Unigram{
		{Term: "the", LogProb: -1.0},
		{Term: "cat", LogProb: -3.0},
	}
	lex, err := BuildLexicon(unigrams, 20, 0, false)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	for _, u := range unigrams {
		n := lex.trie.KeyToNodeId([]byte(u.Term))
		logp, ok := lex.TermLogProb(n)
		if !ok {
			t.Fatalf("TermLogProb(%q): not a terminal", u.Term)
		}
		if diff := float64(logp - u.LogProb); diff > 0.1 || diff < -0.1 {
			t.Errorf("TermLogProb(%q) = %g; want ~%g", u.Term, logp, u.LogProb)
		}
	}
}

func TestLexiconExternalTermIdTop(t *testing.T) {
	unigrams := []Unigram{
		{Term: "the", LogProb: -1.0},
		{Term: "cat", LogProb: -3.0},
		{Term: "dog", LogProb: -4.0},
	}
	// max_num_term_ids = 5 -> top (5-4)=1 term gets an external id: "the".
	lex, err := BuildLexicon(unigrams, 20, 5, false)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	if id := lex.TermToTermId("the"); id == UNK {
		t.Errorf("TermToTermId(\"the\") = UNK; want a real id")
	}
	if id := lex.TermToTermId("cat"); id != UNK {
		t.Errorf("TermToTermId(\"cat\") = %d; want UNK (not in top-1)", id)
	}
}

func TestLexiconPrefixLogProbMonotone(t *testing.T) {
	unigrams := []Unigram{
		{Term: "cat", LogProb: -1.0},
		{Term: "car", LogProb: -5.0},
		{Term: "cap", LogProb: -2.0},
	}
	lex, err := BuildLexicon(unigrams, 20, 0, true)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	root := lex.GetRootNode()
	rootLogp, ok := lex.PrefixLogProb(root.Id)
	if !ok {
		t.Fatalf("PrefixLogProb(root) missing")
	}
	// Best completion from "" is "cat" at -1.0.
	if diff := float64(rootLogp + 1.0); diff > 0.1 || diff < -0.1 {
		t.Errorf("PrefixLogProb(root) = %g; want ~-1.0", rootLogp)
	}

	caNode := lex.trie.KeyToNodeId([]byte("ca"))
	if caNode == InvalidNodeId {
		t.Fatalf("KeyToNodeId(\"ca\") = Invalid")
	}
	// "ca" has the same best completion as root ("cat" at -1.0), so it
	// may or may not carry its own recorded bit (delta-encoded), but if
	// it does, it must not exceed the root's value.
	if caLogp, ok := lex.PrefixLogProb(caNode); ok && caLogp > rootLogp+1e-6 {
		t.Errorf("PrefixLogProb(\"ca\") = %g exceeds PrefixLogProb(root) = %g", caLogp, rootLogp)
	}
}

func TestLexiconPrefixLogProbMultiByteAncestor(t *testing.T) {
	unigrams := []Unigram{
		{Term: "caf", LogProb: -1.0},
		{Term: "café", LogProb: -1.0},
	}
	lex, err := BuildLexicon(unigrams, 20, 0, true)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	cafeNode := lex.trie.KeyToNodeId([]byte("café"))
	if cafeNode == InvalidNodeId {
		t.Fatalf("KeyToNodeId(\"café\") = Invalid")
	}
	// "café"'s nearest rune-aligned ancestor is "caf" — the byte in
	// between falls mid-UTF-8-character and is never a key in the
	// prefix-value set — and it carries the same best-completion
	// value, so "café" must not carry its own redundant record.
	if _, ok := lex.PrefixLogProb(cafeNode); ok {
		t.Errorf(`PrefixLogProb("café") recorded redundantly; nearest aligned ancestor "caf" has the same value`)
	}
}

func TestLexiconRoundTripWire(t *testing.T) {
	unigrams := []Unigram{
		{Term: "the", LogProb: -1.0},
		{Term: "cat", LogProb: -3.0},
		{Term: "dog", LogProb: -4.0},
	}
	lex, err := BuildLexicon(unigrams, 20, 5, true)
	if err != nil {
		t.Fatalf("BuildLexicon: %v", err)
	}
	var buf bytes.Buffer
	if err := lex.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	lex2, err := ReadLexicon(&buf)
	if err != nil {
		t.Fatalf("ReadLexicon: %v", err)
	}
	for _, u := range unigrams {
		if lex.TermToTermId(u.Term) != lex2.TermToTermId(u.Term) {
			t.Errorf("TermToTermId(%q) differs after round-trip", u.Term)
		}
	}
}

func TestLexiconReservedTermPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for reserved term among unigrams")
		}
	}()
	BuildLexicon([]Unigram{{Term: "<UNK>", LogProb: -1}}, 20, 0, false)
}
