// Package index contains the seed index used by the aligner: a hash table
// mapping every k-mer of the reference to the list of locations it occurs at.
// The table is keyed by the 64 bit ntHash value of the k-mer rather than the
// k-mer itself; a colliding k-mer yields a spurious hit which the aligner
// rejects during scoring.
package index

import (
	"fmt"
	"io/ioutil"

	"github.com/will-rowe/ntHash"
	"gopkg.in/vmihailenco/msgpack.v2"

	"github.com/ternlab/tern/src/genome"
)

// MinSeedLen and MaxSeedLen bound the supported seed sizes
const (
	MinSeedLen = 16
	MaxSeedLen = 32
)

// Index is the seed index. Seeds maps the ntHash of a k-mer to the reference
// locations where that k-mer occurs on the forward strand.
type Index struct {
	SeedLen int
	Seeds   map[uint64][]int64
}

// New is the constructor for an empty seed index
func New(seedLen int) (*Index, error) {
	if seedLen < MinSeedLen || seedLen > MaxSeedLen {
		return nil, fmt.Errorf("seed length must be between %d and %d, got %d", MinSeedLen, MaxSeedLen, seedLen)
	}
	return &Index{
		SeedLen: seedLen,
		Seeds:   make(map[uint64][]int64),
	}, nil
}

// AddGenome is a method to index every k-mer of every contig in a genome.
// K-mers containing an N (including the padding runs) are not indexed.
func (index *Index) AddGenome(g *genome.Genome) error {
	for _, contig := range g.Contigs {
		seq := g.GetSubstring(contig.BeginningLocation, contig.Length)
		if len(seq) < index.SeedLen {
			continue
		}
		// track the most recent N so that any window containing one is skipped
		lastN := -1
		for i := 0; i < index.SeedLen-1; i++ {
			if seq[i] == 'N' {
				lastN = i
			}
		}
		hasher, err := ntHash.New(&seq, uint(index.SeedLen))
		if err != nil {
			return fmt.Errorf("can't hash contig %v: %v", contig.Name, err)
		}
		pos := 0
		for hv := range hasher.Hash(false) {
			if seq[pos+index.SeedLen-1] == 'N' {
				lastN = pos + index.SeedLen - 1
			}
			if lastN < pos {
				index.Seeds[hv] = append(index.Seeds[hv], contig.BeginningLocation+int64(pos))
			}
			pos++
		}
	}
	return nil
}

// hashSeed computes the ntHash of a single k-mer
func (index *Index) hashSeed(seed []byte) (uint64, error) {
	hasher, err := ntHash.New(&seed, uint(index.SeedLen))
	if err != nil {
		return 0, err
	}
	for hv := range hasher.Hash(false) {
		return hv, nil
	}
	return 0, fmt.Errorf("no hash produced for seed %v", string(seed))
}

// Lookup returns the locations of a seed on the forward strand, plus the
// locations of its reverse complement. The seed must be exactly SeedLen bases
// and must not contain N.
func (index *Index) Lookup(seed []byte) (forwardHits, rcHits []int64, err error) {
	if len(seed) != index.SeedLen {
		return nil, nil, fmt.Errorf("seed length %d does not match index seed length %d", len(seed), index.SeedLen)
	}
	fh, err := index.hashSeed(seed)
	if err != nil {
		return nil, nil, err
	}
	rcSeed := revComplement(seed)
	rh, err := index.hashSeed(rcSeed)
	if err != nil {
		return nil, nil, err
	}
	return index.Seeds[fh], index.Seeds[rh], nil
}

// NumSeeds returns the number of distinct k-mers held by the index
func (index *Index) NumSeeds() int {
	return len(index.Seeds)
}

// revComplement returns the reverse complement of a seed
func revComplement(seed []byte) []byte {
	rc := make([]byte, len(seed))
	for i, j := 0, len(seed)-1; i < len(seed); i, j = i+1, j-1 {
		switch seed[j] {
		case 'A':
			rc[i] = 'T'
		case 'C':
			rc[i] = 'G'
		case 'G':
			rc[i] = 'C'
		case 'T':
			rc[i] = 'A'
		default:
			rc[i] = 'N'
		}
	}
	return rc
}

// Dump is a method to save the index to file
func (index *Index) Dump(path string) error {
	b, err := msgpack.Marshal(index)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0644)
}

// Load is a method to load an index from file
func (index *Index) Load(path string) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, index)
}
