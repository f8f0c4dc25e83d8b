package aligner

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/index"
	"github.com/ternlab/tern/src/seqio"
)

const (
	testSeedLen = 20
	testPadding = 500
	testRefLen  = 10000
)

// makeSequence builds a fixed pseudo-random contig so every test run sees
// the same reference
func makeSequence(length int, seed uint32) []byte {
	bases := []byte("ACGT")
	seq := make([]byte, length)
	state := seed
	for i := range seq {
		state = state*1664525 + 1013904223
		seq[i] = bases[(state>>16)&3]
	}
	return seq
}

// testOptions keeps the scratch buffers small enough for the test suite
func testOptions() *Options {
	opts := DefaultOptions()
	opts.MaxHitsToConsider = 32
	return opts
}

func buildAligner(t *testing.T, g *genome.Genome, opts *Options) *Aligner {
	t.Helper()
	ix, err := index.New(testSeedLen)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.AddGenome(g); err != nil {
		t.Fatal(err)
	}
	a, err := New(g, ix, opts)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// uniqueGenome is a single random chr1
func uniqueGenome() *genome.Genome {
	g := genome.New(testPadding)
	g.AddContig("chr1", makeSequence(testRefLen, 7), false)
	return g
}

// duplicatedGenome carries a 100 base duplication at 1000 and 7500
func duplicatedGenome() *genome.Genome {
	seq := makeSequence(testRefLen, 7)
	copy(seq[7500:7600], seq[1000:1100])
	g := genome.New(testPadding)
	g.AddContig("chr1", seq, false)
	return g
}

// altGenome carries chr1 plus an ALT contig that differs from chr1[3000:3200]
// by two bases
func altGenome() *genome.Genome {
	seq := makeSequence(testRefLen, 7)
	altSeq := append([]byte(nil), seq[3000:3200]...)
	altSeq[30] = substituteBase(altSeq[30])
	altSeq[70] = substituteBase(altSeq[70])
	g := genome.New(testPadding)
	g.AddContig("chr1", seq, false)
	g.AddContig("chr1_alt", altSeq, true)
	return g
}

func substituteBase(b byte) byte {
	switch b {
	case 'A':
		return 'C'
	case 'C':
		return 'G'
	case 'G':
		return 'T'
	default:
		return 'A'
	}
}

func makeRead(id string, seq []byte) seqio.FASTQread {
	return seqio.FASTQread{
		Sequence: seqio.Sequence{ID: []byte(id), Seq: append([]byte(nil), seq...)},
		Qual:     bytes.Repeat([]byte{'I'}, len(seq)),
	}
}

func newTestSet() *AlignmentSet {
	return NewAlignmentSet(16, 16, 2)
}

func TestExactRead(t *testing.T) {
	g := uniqueGenome()
	a := buildAligner(t, g, testOptions())
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("exact", g.GetSubstring(chr1+1000, 100))
	out := newTestSet()
	if !a.AlignRead(&read, out) {
		t.Fatal("nothing should have overflowed")
	}
	if out.Primary.Status != SingleHit {
		t.Fatal("expected a hit")
	}
	if out.Primary.Location != chr1+1000 {
		t.Fatalf("expected location %d, got %d", chr1+1000, out.Primary.Location)
	}
	if out.Primary.Direction != Forward {
		t.Fatal("expected a forward alignment")
	}
	if out.Primary.Score != 0 {
		t.Fatalf("expected score 0, got %d", out.Primary.Score)
	}
	if out.Primary.MAPQ != 70 {
		t.Fatalf("expected MAPQ 70, got %d", out.Primary.MAPQ)
	}
}

func TestAlignReadIsDeterministic(t *testing.T) {
	g := uniqueGenome()
	a := buildAligner(t, g, testOptions())
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("deterministic", g.GetSubstring(chr1+4000, 100))
	out1 := newTestSet()
	out2 := newTestSet()
	a.AlignRead(&read, out1)
	a.AlignRead(&read, out2)
	if !reflect.DeepEqual(out1.Primary, out2.Primary) {
		t.Fatal("primary results differ between identical calls")
	}
	if !reflect.DeepEqual(out1.Secondary, out2.Secondary) {
		t.Fatal("secondary results differ between identical calls")
	}
}

func TestMutatedRead(t *testing.T) {
	g := uniqueGenome()
	a := buildAligner(t, g, testOptions())
	chr1 := g.Contigs[0].BeginningLocation
	seq := append([]byte(nil), g.GetSubstring(chr1+1000, 100)...)
	seq[40] = substituteBase(seq[40])
	read := makeRead("mutated", seq)
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit || out.Primary.Location != chr1+1000 {
		t.Fatalf("expected a hit at %d, got %+v", chr1+1000, out.Primary)
	}
	if out.Primary.Score != 1 {
		t.Fatalf("expected score 1, got %d", out.Primary.Score)
	}
	if out.Primary.MAPQ < 50 {
		t.Fatalf("expected MAPQ of at least 50, got %d", out.Primary.MAPQ)
	}
}

func TestReverseComplementRead(t *testing.T) {
	g := uniqueGenome()
	a := buildAligner(t, g, testOptions())
	chr1 := g.Contigs[0].BeginningLocation
	forward := g.GetSubstring(chr1+5000, 100)
	read := makeRead("rc", seqio.RevComplementSeq(forward))
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit || out.Primary.Location != chr1+5000 {
		t.Fatalf("expected a hit at %d, got %+v", chr1+5000, out.Primary)
	}
	if out.Primary.Direction != RC {
		t.Fatal("expected a reverse complement alignment")
	}
	if out.Primary.Score != 0 {
		t.Fatalf("expected score 0, got %d", out.Primary.Score)
	}

	// the forward read must land on the same location with the opposite strand
	fwdRead := makeRead("fwd", forward)
	fwdOut := newTestSet()
	a.AlignRead(&fwdRead, fwdOut)
	if fwdOut.Primary.Location != out.Primary.Location {
		t.Fatal("forward and rc reads should report the same location")
	}
	if fwdOut.Primary.Direction != Forward {
		t.Fatal("forward read should report the forward strand")
	}
}

func TestInsertionRead(t *testing.T) {
	g := uniqueGenome()
	chr1 := g.Contigs[0].BeginningLocation
	seq := append([]byte(nil), g.GetSubstring(chr1+2000, 60)...)
	seq = append(seq, 'A')
	seq = append(seq, g.GetSubstring(chr1+2060, 40)...)

	// unit cost scoring sees at least one edit
	a := buildAligner(t, g, testOptions())
	read := makeRead("insertion", seq)
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit || out.Primary.Location != chr1+2000 {
		t.Fatalf("expected a hit at %d, got %+v", chr1+2000, out.Primary)
	}
	if out.Primary.Score < 1 {
		t.Fatalf("an inserted base cannot score 0, got %d", out.Primary.Score)
	}

	// affine gap scoring charges exactly one gap open
	opts := testOptions()
	opts.UseAffineGap = true
	ag := buildAligner(t, g, opts)
	agOut := newTestSet()
	ag.AlignRead(&read, agOut)
	ag.AlignAffineGap(&read, agOut)
	if agOut.Primary.Status != SingleHit {
		t.Fatal("expected a hit from the affine gap pass")
	}
	if !agOut.Primary.UsedAffineGapScoring {
		t.Fatal("the primary should be affine gap scored")
	}
	wantAG := opts.FivePrimeEndBonus + 100*opts.MatchReward - opts.GapOpenPenalty + opts.ThreePrimeEndBonus
	if agOut.Primary.AGScore != wantAG {
		t.Fatalf("expected agScore %d (one gap open, zero extends), got %d", wantAG, agOut.Primary.AGScore)
	}
}

func TestDuplicatedRegion(t *testing.T) {
	g := duplicatedGenome()
	a := buildAligner(t, g, testOptions())
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("dup", g.GetSubstring(chr1+1000, 100))
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit {
		t.Fatal("expected a hit")
	}
	locations := map[int64]bool{out.Primary.Location: true}
	for _, secondary := range out.Secondary {
		locations[secondary.Location] = true
	}
	if !locations[chr1+1000] || !locations[chr1+7500] {
		t.Fatalf("both copies should be reported, got %v", locations)
	}
	if out.NSecondary != 1 {
		t.Fatalf("expected exactly one secondary, got %d", out.NSecondary)
	}
	if out.Primary.MAPQ != 3 {
		t.Fatalf("an ambiguous alignment should have MAPQ 3, got %d", out.Primary.MAPQ)
	}
}

func TestALTSelection(t *testing.T) {
	g := altGenome()
	chr1 := g.Contigs[0].BeginningLocation
	altStart := g.Contigs[1].BeginningLocation
	altRead := makeRead("alt", g.GetSubstring(altStart, 100))

	// ALT aware: the non-ALT location wins and the ALT goes to FirstALT
	opts := testOptions()
	opts.AltAwareness = true
	opts.EmitALTAlignments = true
	opts.MaxScoreGapToPreferNonAltAlignment = 2
	a := buildAligner(t, g, opts)
	out := newTestSet()
	a.AlignRead(&altRead, out)
	if out.Primary.Status != SingleHit || out.Primary.Location != chr1+3000 {
		t.Fatalf("expected the non-ALT location %d, got %+v", chr1+3000, out.Primary)
	}
	if out.Primary.Score != 2 {
		t.Fatalf("the non-ALT alignment carries the two ALT differences, got score %d", out.Primary.Score)
	}
	if out.FirstALT.Status != SingleHit || out.FirstALT.Location != altStart {
		t.Fatalf("expected the ALT alignment in FirstALT, got %+v", out.FirstALT)
	}
	if out.FirstALT.Score != 0 {
		t.Fatalf("the ALT alignment should be exact, got score %d", out.FirstALT.Score)
	}

	// not ALT aware: the exact ALT hit is simply the best
	plain := buildAligner(t, g, testOptions())
	plainOut := newTestSet()
	plain.AlignRead(&altRead, plainOut)
	if plainOut.Primary.Status != SingleHit || plainOut.Primary.Location != altStart {
		t.Fatalf("expected the ALT location %d, got %+v", altStart, plainOut.Primary)
	}
}

func TestCompetitiveALTReported(t *testing.T) {
	// the mirror image: the primary assembly location is already the unique
	// best, but the ALT contig carries a competitive alignment two edits
	// behind, which must still be surfaced through FirstALT
	g := altGenome()
	chr1 := g.Contigs[0].BeginningLocation
	altStart := g.Contigs[1].BeginningLocation
	read := makeRead("refside", g.GetSubstring(chr1+3000, 100))

	opts := testOptions()
	opts.AltAwareness = true
	opts.EmitALTAlignments = true
	opts.MaxScoreGapToPreferNonAltAlignment = 2
	a := buildAligner(t, g, opts)
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit || out.Primary.Location != chr1+3000 {
		t.Fatalf("expected the non-ALT location %d, got %+v", chr1+3000, out.Primary)
	}
	if out.Primary.Score != 0 {
		t.Fatalf("the read matches the primary assembly exactly, got score %d", out.Primary.Score)
	}
	if out.FirstALT.Status != SingleHit || out.FirstALT.Location != altStart {
		t.Fatalf("a competitive ALT alignment should be reported in FirstALT, got %+v", out.FirstALT)
	}
	if out.FirstALT.Score != 2 {
		t.Fatalf("the ALT alignment carries the two contig differences, got score %d", out.FirstALT.Score)
	}

	// the ALT must not be reported when the score gap excludes it
	strict := testOptions()
	strict.AltAwareness = true
	strict.EmitALTAlignments = true
	strict.MaxScoreGapToPreferNonAltAlignment = 1
	s := buildAligner(t, g, strict)
	strictOut := newTestSet()
	s.AlignRead(&read, strictOut)
	if strictOut.FirstALT.Status != NotFound {
		t.Fatalf("an ALT outside the score gap must not be reported, got %+v", strictOut.FirstALT)
	}
}

func TestAllNRead(t *testing.T) {
	g := uniqueGenome()
	a := buildAligner(t, g, testOptions())
	read := makeRead("n", bytes.Repeat([]byte{'N'}, 100))
	out := newTestSet()
	if !a.AlignRead(&read, out) {
		t.Fatal("an ignored read should not overflow anything")
	}
	if out.Primary.Status != NotFound {
		t.Fatal("an all-N read cannot align")
	}
	if a.Stats().ReadsIgnoredBecauseOfTooManyNs != 1 {
		t.Fatalf("the ignored reads counter should be 1, got %d", a.Stats().ReadsIgnoredBecauseOfTooManyNs)
	}
}

func TestTooLongRead(t *testing.T) {
	g := uniqueGenome()
	opts := testOptions()
	opts.MaxReadSize = 80
	a := buildAligner(t, g, opts)
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("long", g.GetSubstring(chr1+1000, 100))
	out := newTestSet()
	if !a.AlignRead(&read, out) {
		t.Fatal("an oversized read should not overflow anything")
	}
	if out.Primary.Status != NotFound {
		t.Fatal("an oversized read cannot align")
	}
}

func TestStopOnFirstHit(t *testing.T) {
	g := uniqueGenome()
	opts := testOptions()
	opts.StopOnFirstHit = true
	a := buildAligner(t, g, opts)
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("stop", g.GetSubstring(chr1+1000, 100))
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit || out.Primary.Score > a.opts.MaxK {
		t.Fatalf("stopOnFirstHit should still report the hit, got %+v", out.Primary)
	}
}

func TestSecondaryOverflow(t *testing.T) {
	g := duplicatedGenome()
	a := buildAligner(t, g, testOptions())
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("overflow", g.GetSubstring(chr1+1000, 100))
	out := NewAlignmentSet(0, 16, 2)
	if a.AlignRead(&read, out) {
		t.Fatal("a zero sized secondary buffer must overflow on a duplicated region")
	}
}

func TestMaxSecondaryAlignmentsPerContig(t *testing.T) {
	g := duplicatedGenome()
	opts := testOptions()
	opts.MaxSecondaryAlignmentsPerContig = 1
	a := buildAligner(t, g, opts)
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("percontig", g.GetSubstring(chr1+1000, 100))
	out := newTestSet()
	a.AlignRead(&read, out)
	// the primary uses up the single chr1 slot, so the duplicate is dropped
	if out.NSecondary != 0 {
		t.Fatalf("the per-contig cap should drop the duplicate, got %d secondaries", out.NSecondary)
	}
}

func TestHammingMode(t *testing.T) {
	g := uniqueGenome()
	opts := testOptions()
	opts.UseHamming = true
	a := buildAligner(t, g, opts)
	chr1 := g.Contigs[0].BeginningLocation
	read := makeRead("hamming", g.GetSubstring(chr1+1000, 100))
	out := newTestSet()
	a.AlignRead(&read, out)
	if out.Primary.Status != SingleHit || out.Primary.Score != 0 {
		t.Fatalf("hamming mode should find the exact hit, got %+v", out.Primary)
	}
	if a.Stats().LocationsScoredHamming == 0 {
		t.Fatal("the hamming counter should have moved")
	}
}

func TestConfigurationErrors(t *testing.T) {
	g := uniqueGenome()
	ix, err := index.New(testSeedLen)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.AddGenome(g); err != nil {
		t.Fatal(err)
	}
	opts := testOptions()
	opts.MaxSeedsToUse = 0
	opts.MaxSeedCoverage = 0
	if _, err := New(g, ix, opts); err == nil {
		t.Fatal("both seed quotas unset should fault")
	}
	opts = testOptions()
	opts.MaxReadSize = 10
	if _, err := New(g, ix, opts); err == nil {
		t.Fatal("a max read size below the seed length should fault")
	}
}
