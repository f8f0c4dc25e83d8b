package lv

import (
	"bytes"
	"testing"
)

var (
	testQual = bytes.Repeat([]byte{'I'}, 64)
)

func TestExactMatch(t *testing.T) {
	scorer := NewScorer(8)
	pattern := []byte("ACGTACGTACGT")
	text := []byte("ACGTACGTACGTAAAA")
	result, ok := scorer.ComputeEditDistance(text, pattern, testQual[:len(pattern)], 8)
	if !ok {
		t.Fatal("exact match should not exceed the limit")
	}
	if result.Distance != 0 {
		t.Fatalf("exact match should have distance 0, got %d", result.Distance)
	}
	if result.NetIndel != 0 {
		t.Fatalf("exact match should have no net indel, got %d", result.NetIndel)
	}
	if result.MatchProbability <= 0 || result.MatchProbability > 1 {
		t.Fatalf("match probability out of range: %v", result.MatchProbability)
	}
}

func TestSingleMismatch(t *testing.T) {
	scorer := NewScorer(8)
	pattern := []byte("ACGTACGT")
	text := []byte("ACGAACGT")
	result, ok := scorer.ComputeEditDistance(text, pattern, testQual[:len(pattern)], 8)
	if !ok {
		t.Fatal("single mismatch should not exceed the limit")
	}
	if result.Distance != 1 {
		t.Fatalf("expected distance 1, got %d", result.Distance)
	}
	perfect, _ := scorer.ComputeEditDistance(pattern, pattern, testQual[:len(pattern)], 8)
	if result.MatchProbability >= perfect.MatchProbability {
		t.Fatal("a mismatch should lower the match probability")
	}
}

func TestInsertionInPattern(t *testing.T) {
	scorer := NewScorer(8)
	// the pattern carries one extra base relative to the text
	pattern := []byte("ACGTTACG")
	text := []byte("ACGTACG")
	result, ok := scorer.ComputeEditDistance(text, pattern, testQual[:len(pattern)], 8)
	if !ok {
		t.Fatal("single indel should not exceed the limit")
	}
	if result.Distance != 1 {
		t.Fatalf("expected distance 1, got %d", result.Distance)
	}
	if result.NetIndel != -1 {
		t.Fatalf("expected net indel of -1, got %d", result.NetIndel)
	}
}

func TestLimitExceeded(t *testing.T) {
	scorer := NewScorer(8)
	pattern := []byte("AAAAAAAA")
	text := []byte("CCCCCCCC")
	if _, ok := scorer.ComputeEditDistance(text, pattern, testQual[:len(pattern)], 2); ok {
		t.Fatal("should have exceeded a limit of 2")
	}
}

func TestReverseVariant(t *testing.T) {
	scorer := NewScorer(8)
	// anchored at the right ends: the mismatch sits at the left end of the
	// fragments and must still be found
	pattern := []byte("TACGTACG")
	text := []byte("AACGTACG")
	result, ok := scorer.ComputeEditDistanceReverse(text, pattern, testQual[:len(pattern)], 8)
	if !ok {
		t.Fatal("reverse variant should not exceed the limit")
	}
	if result.Distance != 1 {
		t.Fatalf("expected distance 1, got %d", result.Distance)
	}
	// and a clean right-anchored match
	result, ok = scorer.ComputeEditDistanceReverse([]byte("GGGACGTACGT"), []byte("ACGTACGT"), testQual[:8], 4)
	if !ok || result.Distance != 0 {
		t.Fatalf("right anchored match should be clean, got %v %v", result.Distance, ok)
	}
}

func TestEmptyPattern(t *testing.T) {
	scorer := NewScorer(8)
	result, ok := scorer.ComputeEditDistance([]byte("ACGT"), nil, nil, 4)
	if !ok || result.Distance != 0 || result.MatchProbability != 1 {
		t.Fatal("empty pattern should align for free")
	}
}

func TestHamming(t *testing.T) {
	text := []byte("ACGTACGT")
	pattern := []byte("ACGTACGA")
	result, ok := ComputeHammingDistance(text, pattern, testQual[:len(pattern)], 4)
	if !ok || result.Distance != 1 {
		t.Fatalf("expected hamming distance 1, got %v %v", result.Distance, ok)
	}
	if _, ok := ComputeHammingDistance(text, []byte("TTTTTTTT"), testQual[:8], 4); ok {
		t.Fatal("should have exceeded the hamming limit")
	}
}

func TestQualityAffectsProbability(t *testing.T) {
	scorer := NewScorer(8)
	pattern := []byte("ACGTACGT")
	highQual := bytes.Repeat([]byte{'I'}, len(pattern))
	lowQual := bytes.Repeat([]byte{'#'}, len(pattern))
	high, _ := scorer.ComputeEditDistance(pattern, pattern, highQual, 8)
	low, _ := scorer.ComputeEditDistance(pattern, pattern, lowQual, 8)
	if high.MatchProbability <= low.MatchProbability {
		t.Fatal("high quality bases should give a higher match probability")
	}
}
