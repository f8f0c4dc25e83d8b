package affinegap

import (
	"bytes"
	"testing"
)

var testParams = Params{
	MatchReward:        1,
	SubPenalty:         4,
	GapOpenPenalty:     6,
	GapExtendPenalty:   1,
	FivePrimeEndBonus:  10,
	ThreePrimeEndBonus: 5,
}

func TestPerfectMatch(t *testing.T) {
	scorer := NewScorer(testParams)
	read := []byte("ACGTACGTACGTACGTACGT")
	qual := bytes.Repeat([]byte{'I'}, len(read))
	result, ok := scorer.Score(read, qual, read, 8)
	if !ok {
		t.Fatal("perfect match should score")
	}
	want := testParams.FivePrimeEndBonus + len(read)*testParams.MatchReward + testParams.ThreePrimeEndBonus
	if result.Score != want {
		t.Fatalf("expected score %d, got %d", want, result.Score)
	}
	if result.EditDistance != 0 || result.BasesClippedBefore != 0 || result.BasesClippedAfter != 0 {
		t.Fatalf("perfect match should have no edits or clips: %+v", result)
	}
	if result.RefStart != 0 {
		t.Fatalf("expected alignment at the window start, got %d", result.RefStart)
	}
}

func TestSingleMismatch(t *testing.T) {
	scorer := NewScorer(testParams)
	ref := []byte("ACGTACGTACGTACGTACGT")
	read := append([]byte(nil), ref...)
	read[10] = 'A' // was G
	qual := bytes.Repeat([]byte{'I'}, len(read))
	result, ok := scorer.Score(read, qual, ref, 8)
	if !ok {
		t.Fatal("single mismatch should score")
	}
	want := testParams.FivePrimeEndBonus + (len(read)-1)*testParams.MatchReward - testParams.SubPenalty + testParams.ThreePrimeEndBonus
	if result.Score != want {
		t.Fatalf("expected score %d, got %d", want, result.Score)
	}
	if result.EditDistance != 1 {
		t.Fatalf("expected edit distance 1, got %d", result.EditDistance)
	}
}

func TestSingleBaseInsertion(t *testing.T) {
	scorer := NewScorer(testParams)
	ref := []byte("GATTACAGATTACAGATTACAGATTACA")
	read := append([]byte(nil), ref[:14]...)
	read = append(read, 'C') // G follows, so this forces a gap
	read = append(read, ref[14:]...)
	qual := bytes.Repeat([]byte{'I'}, len(read))
	result, ok := scorer.Score(read, qual, ref, 8)
	if !ok {
		t.Fatal("one base insertion should score")
	}
	// one gap open, zero extends
	want := testParams.FivePrimeEndBonus + len(ref)*testParams.MatchReward - testParams.GapOpenPenalty + testParams.ThreePrimeEndBonus
	if result.Score != want {
		t.Fatalf("expected score %d, got %d", want, result.Score)
	}
	if result.EditDistance != 1 {
		t.Fatalf("expected edit distance 1, got %d", result.EditDistance)
	}
}

func TestSoftClipStart(t *testing.T) {
	scorer := NewScorer(testParams)
	ref := []byte("ACACACGATTACAGATTACAGATTACA")
	read := append([]byte("GGGGG"), ref[10:]...)
	qual := bytes.Repeat([]byte{'I'}, len(read))
	result, ok := scorer.Score(read, qual, ref, 8)
	if !ok {
		t.Fatal("clipped read should score")
	}
	if result.BasesClippedBefore != 5 {
		t.Fatalf("expected 5 bases clipped at the front, got %d", result.BasesClippedBefore)
	}
	if result.EditDistance != 0 {
		t.Fatalf("expected no edits in the aligned part, got %d", result.EditDistance)
	}
	if result.RefStart != 10 {
		t.Fatalf("expected the alignment to start at window offset 10, got %d", result.RefStart)
	}
}

func TestShiftedWindow(t *testing.T) {
	scorer := NewScorer(testParams)
	ref := []byte("TTTTTTTTTTACGTACGTACGTACGTACGTTTTTTTTTTT")
	read := []byte("ACGTACGTACGTACGTACGT")
	qual := bytes.Repeat([]byte{'I'}, len(read))
	result, ok := scorer.Score(read, qual, ref, 8)
	if !ok {
		t.Fatal("read should align inside the window")
	}
	if result.RefStart != 10 {
		t.Fatalf("expected alignment at window offset 10, got %d", result.RefStart)
	}
	if result.EditDistance != 0 {
		t.Fatalf("expected a clean alignment, got %d edits", result.EditDistance)
	}
}

func TestLimitExceeded(t *testing.T) {
	scorer := NewScorer(testParams)
	// with soft clipping the best alignment of garbage still carries edits
	// thanks to the 5' bonus (a four base gap that ties a single mismatch and
	// wins on read length), so a limit of zero must reject it
	if _, ok := scorer.Score([]byte("AAAA"), bytes.Repeat([]byte{'I'}, 4), []byte("CCCC"), 0); ok {
		t.Fatal("an alignment with edits should exceed a limit of 0")
	}
}
