package index

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/seqio"
)

// a fixed pseudo-random contig so the expected k-mer positions are stable
func testContig(length int) []byte {
	bases := []byte("ACGT")
	seq := make([]byte, length)
	state := uint32(42)
	for i := range seq {
		state = state*1664525 + 1013904223
		seq[i] = bases[(state>>16)&3]
	}
	return seq
}

func buildTestIndex(t *testing.T) (*Index, *genome.Genome, []byte) {
	seq := testContig(300)
	g := genome.New(50)
	g.AddContig("chr1", seq, false)
	ix, err := New(20)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.AddGenome(g); err != nil {
		t.Fatal(err)
	}
	return ix, g, seq
}

func TestNewValidation(t *testing.T) {
	if _, err := New(4); err == nil {
		t.Fatal("seed length below the minimum should fault")
	}
	if _, err := New(64); err == nil {
		t.Fatal("seed length above the maximum should fault")
	}
}

func TestLookupForward(t *testing.T) {
	ix, g, seq := buildTestIndex(t)
	seed := seq[100:120]
	forwardHits, _, err := ix.Lookup(seed)
	if err != nil {
		t.Fatal(err)
	}
	want := g.Contigs[0].BeginningLocation + 100
	found := false
	for _, hit := range forwardHits {
		if hit == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a forward hit at %d, got %v", want, forwardHits)
	}
}

func TestLookupReverseComplement(t *testing.T) {
	ix, g, seq := buildTestIndex(t)
	// the reverse complement of a genomic k-mer must come back as an rc hit
	seed := seqio.RevComplementSeq(seq[100:120])
	_, rcHits, err := ix.Lookup(seed)
	if err != nil {
		t.Fatal(err)
	}
	want := g.Contigs[0].BeginningLocation + 100
	found := false
	for _, hit := range rcHits {
		if hit == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an rc hit at %d, got %v", want, rcHits)
	}
}

func TestLookupRejectsWrongLength(t *testing.T) {
	ix, _, _ := buildTestIndex(t)
	if _, _, err := ix.Lookup([]byte("ACGT")); err == nil {
		t.Fatal("lookup with the wrong seed length should fault")
	}
}

func TestPaddingNotIndexed(t *testing.T) {
	// k-mers overlapping the padding (or any N) must not be indexed, so a
	// genome of pure padding plus a short contig only indexes the contig
	seq := testContig(40)
	g := genome.New(100)
	g.AddContig("chr1", seq, false)
	ix, err := New(20)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.AddGenome(g); err != nil {
		t.Fatal(err)
	}
	// 40-base contig has 21 k-mers of length 20
	total := 0
	for _, hits := range ix.Seeds {
		total += len(hits)
	}
	if total != 21 {
		t.Fatalf("expected 21 indexed positions, got %d", total)
	}
}

func TestDumpAndLoad(t *testing.T) {
	ix, g, seq := buildTestIndex(t)
	tmp, err := ioutil.TempFile("", "tern-index-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmp.Name())
	tmp.Close()
	if err := ix.Dump(tmp.Name()); err != nil {
		t.Fatal(err)
	}
	loaded := new(Index)
	if err := loaded.Load(tmp.Name()); err != nil {
		t.Fatal(err)
	}
	if loaded.SeedLen != 20 || loaded.NumSeeds() != ix.NumSeeds() {
		t.Fatal("index did not survive the round trip")
	}
	forwardHits, _, err := loaded.Lookup(seq[100:120])
	if err != nil {
		t.Fatal(err)
	}
	if len(forwardHits) == 0 || forwardHits[0] != g.Contigs[0].BeginningLocation+100 {
		t.Fatal("lookup on the loaded index failed")
	}
}
