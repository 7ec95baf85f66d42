package fslm

import (
	"bytes"
	"testing"
)

func TestNgramModelReservedDefaults(t *testing.T) {
	m, err := BuildNgramModel(nil, 20, false)
	if err != nil {
		t.Fatalf("BuildNgramModel: %v", err)
	}
	for _, id := range []TermId{BOS, EOS, UNK, NONE} {
		v, ok := m.KeyToValue([]TermId{id})
		if !ok {
			t.Fatalf("KeyToValue([%d]) missing default entry", id)
		}
		if v > -19 {
			t.Errorf("KeyToValue([%d]) = %g; want near -range (default miss)", id, v)
		}
	}
}

func TestNgramModelLookup(t *testing.T) {
	const a, b, c TermId = 10, 11, 12
	entries := []NgramEntry{
		{Terms: []TermId{a}, LogProb: -1.0},
		{Terms: []TermId{b}, LogProb: -2.0},
		{Terms: []TermId{a, b}, LogProb: -0.5},
		{Terms: []TermId{c}, LogProb: -3.0},
		{Terms: []TermId{a, b, c}, LogProb: -0.25},
	}
	m, err := BuildNgramModel(entries, 20, false)
	if err != nil {
		t.Fatalf("BuildNgramModel: %v", err)
	}
	if got := m.MaxN(); got != 3 {
		t.Errorf("MaxN() = %d; want 3", got)
	}
	for _, e := range entries {
		v, ok := m.KeyToValue(e.Terms)
		if !ok {
			t.Fatalf("KeyToValue(%v) missing", e.Terms)
		}
		if diff := float64(v - e.LogProb); diff > 0.15 || diff < -0.15 {
			t.Errorf("KeyToValue(%v) = %g; want ~%g", e.Terms, v, e.LogProb)
		}
	}
	if _, ok := m.KeyToValue([]TermId{b, a}); ok {
		t.Error("KeyToValue([b,a]) should miss: never inserted")
	}
}

func TestNgramModelDenseRequirement(t *testing.T) {
	const a, b TermId = 10, 11
	entries := []NgramEntry{
		{Terms: []TermId{a, b}, LogProb: -1.0},
	}
	if _, err := BuildNgramModel(entries, 20, false); err == nil {
		t.Error("expected error: unigram {a} missing while bigram {a,b} present")
	}
}

func TestNgramModelBackoffWeights(t *testing.T) {
	const a, b TermId = 10, 11
	entries := []NgramEntry{
		{Terms: []TermId{a}, LogProb: -1.0, Backoff: -0.1},
		{Terms: []TermId{b}, LogProb: -2.0, Backoff: 0},
		{Terms: []TermId{a, b}, LogProb: -0.5},
	}
	m, err := BuildNgramModel(entries, 20, true)
	if err != nil {
		t.Fatalf("BuildNgramModel: %v", err)
	}
	aNode := m.KeyToNodeId([]TermId{a})
	aTerm := m.NodeIdToTerminalId(aNode)
	bo, ok := m.BackoffWeight(aTerm)
	if !ok {
		t.Fatalf("BackoffWeight(a) missing")
	}
	if diff := float64(bo - (-0.1)); diff > 0.15 || diff < -0.15 {
		t.Errorf("BackoffWeight(a) = %g; want ~-0.1", bo)
	}

	bNode := m.KeyToNodeId([]TermId{b})
	bTerm := m.NodeIdToTerminalId(bNode)
	if _, ok := m.BackoffWeight(bTerm); ok {
		t.Error("BackoffWeight(b) should be absent: zero weights are not stored")
	}

	abNode := m.KeyToNodeId([]TermId{a, b})
	abTerm := m.NodeIdToTerminalId(abNode)
	if _, ok := m.BackoffWeight(abTerm); ok {
		t.Error("BackoffWeight(ab) should be absent: never supplied")
	}
}

func TestNgramModelRoundTrip(t *testing.T) {
	const a, b TermId = 10, 11
	entries := []NgramEntry{
		{Terms: []TermId{a}, LogProb: -1.0, Backoff: -0.2},
		{Terms: []TermId{b}, LogProb: -2.0},
		{Terms: []TermId{a, b}, LogProb: -0.5},
	}
	m, err := BuildNgramModel(entries, 20, true)
	if err != nil {
		t.Fatalf("BuildNgramModel: %v", err)
	}
	var buf bytes.Buffer
	if err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	m2, err := ReadNgramModel(&buf, 20)
	if err != nil {
		t.Fatalf("ReadNgramModel: %v", err)
	}
	if m2.MaxN() != m.MaxN() {
		t.Errorf("MaxN() = %d; want %d", m2.MaxN(), m.MaxN())
	}
	for _, e := range entries {
		v1, _ := m.KeyToValue(e.Terms)
		v2, ok := m2.KeyToValue(e.Terms)
		if !ok || v1 != v2 {
			t.Errorf("KeyToValue(%v) round-trip mismatch: %g vs %g", e.Terms, v1, v2)
		}
	}
	aNode := m2.KeyToNodeId([]TermId{a})
	aTerm := m2.NodeIdToTerminalId(aNode)
	if _, ok := m2.BackoffWeight(aTerm); !ok {
		t.Error("BackoffWeight(a) missing after round-trip")
	}
}

func TestNgramModelDumpNgrams(t *testing.T) {
	const a, b TermId = 10, 11
	entries := []NgramEntry{
		{Terms: []TermId{a}, LogProb: -1.0},
		{Terms: []TermId{b}, LogProb: -2.0},
		{Terms: []TermId{a, b}, LogProb: -0.5},
	}
	m, err := BuildNgramModel(entries, 20, false)
	if err != nil {
		t.Fatalf("BuildNgramModel: %v", err)
	}
	dumped := m.DumpNgrams()
	// 4 reserved unigrams + 2 real unigrams + 1 bigram = 7.
	if len(dumped) != 7 {
		t.Errorf("len(DumpNgrams()) = %d; want 7", len(dumped))
	}
}
