// Package aligner contains the single-end alignment engine: seed selection,
// the candidate hash tables and weight index, the scoring dispatch over the
// two back-ends, the probability based mapping quality estimate and the
// secondary/ALT result selection.
//
// An Aligner instance is single-owner: it carries all of its per-read scratch
// state and must never be shared between goroutines. Run one instance per
// worker; the genome and seed index they share are read-only.
package aligner

import (
	"github.com/ternlab/tern/src/affinegap"
	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/index"
	"github.com/ternlab/tern/src/lv"
	"github.com/ternlab/tern/src/seqio"
)

// elementPoolCap bounds the candidate element pool regardless of
// configuration; hits that arrive once the pool is drained are dropped and
// the loss is folded into the MAPQ
const elementPoolCap = 8192

// Aligner is the alignment engine
type Aligner struct {
	genome *genome.Genome
	index  *index.Index
	opts   Options

	seedLen  int
	lvScorer *lv.Scorer
	agScorer *affinegap.Scorer

	stats Stats

	// candidate store
	epoch                 uint64
	pool                  []hashTableElement
	nUsedElements         int
	wrapCount             int
	anchors               [NumDirections][]hashTableAnchor
	tableMask             uint64
	weightListHeads       []int32
	highestUsedWeightList int

	// per-read scratch, allocated once at construction
	seedUsed          []byte
	seedCoverageCount []uint16
	rcRead            []byte
	rcQual            []byte
	readData          [NumDirections][]byte
	qualData          [NumDirections][]byte
	readLen           int

	hitsPerContig    []hitsPerContigCounts
	contigCountEpoch uint64
	agRescoreBuf     []SingleAlignmentResult

	scoresForAllAlignments    scoreSet
	scoresForNonAltAlignments scoreSet
	scoresForAltAlignments    scoreSet

	lowestPossibleScoreOfAnyUnseenLocation [NumDirections]int
	mostSeedsContainingAnyParticularBase   [NumDirections]int
	nSeedsApplied                          [NumDirections]int
	popularSeedsSkipped                    int

	wrapOffsets []int
}

// hitsPerContigCounts implements the per-contig secondary cap; the epoch
// field makes the counters self-reset each read
type hitsPerContigCounts struct {
	epoch uint64
	hits  int
}

// New is the constructor. It validates the configuration and allocates the
// per-read scratch buffers up front for AlignRead to reuse. AlignRead still
// allocates in the seed index lookups and in the final sort of the secondary
// list.
func New(g *genome.Genome, ix *index.Index, opts *Options) (*Aligner, error) {
	if err := opts.validate(ix.SeedLen); err != nil {
		return nil, err
	}
	maxSeeds := maxSeedsUpperBound(opts, ix.SeedLen)
	poolSize := maxSeeds * opts.MaxHitsToConsider
	if poolSize > elementPoolCap {
		poolSize = elementPoolCap
	}
	if poolSize < 64 {
		poolSize = 64
	}
	tableSize := uint64(64)
	for tableSize < uint64(4*poolSize) {
		tableSize *= 2
	}
	a := &Aligner{
		genome:            g,
		index:             ix,
		opts:              *opts,
		seedLen:           ix.SeedLen,
		lvScorer:          lv.NewScorer(opts.MaxK + opts.ExtraSearchDepth + 1),
		pool:              make([]hashTableElement, poolSize),
		tableMask:         tableSize - 1,
		weightListHeads:   make([]int32, maxSeeds+opts.ExtraSearchDepth+2),
		seedUsed:          make([]byte, opts.MaxReadSize/8+1),
		seedCoverageCount: make([]uint16, opts.MaxReadSize),
		rcRead:            make([]byte, opts.MaxReadSize),
		rcQual:            make([]byte, opts.MaxReadSize),
		hitsPerContig:     make([]hitsPerContigCounts, len(g.Contigs)),
		agRescoreBuf:      make([]SingleAlignmentResult, 0, 64),
		wrapOffsets:       computeWrapOffsets(ix.SeedLen),
	}
	a.agScorer = affinegap.NewScorer(affinegap.Params{
		MatchReward:        opts.MatchReward,
		SubPenalty:         opts.SubPenalty,
		GapOpenPenalty:     opts.GapOpenPenalty,
		GapExtendPenalty:   opts.GapExtendPenalty,
		FivePrimeEndBonus:  opts.FivePrimeEndBonus,
		ThreePrimeEndBonus: opts.ThreePrimeEndBonus,
	})
	for d := 0; d < NumDirections; d++ {
		a.anchors[d] = make([]hashTableAnchor, tableSize)
	}
	for i := range a.weightListHeads {
		a.weightListHeads[i] = nilIndex
	}
	return a, nil
}

// Stats returns the counters accumulated so far
func (a *Aligner) Stats() *Stats {
	return &a.stats
}

// CheckedAllSeeds reports whether the last read was aligned without skipping
// any popular seed
func (a *Aligner) CheckedAllSeeds() bool {
	return a.popularSeedsSkipped == 0
}

// EstimateMemoryUsage returns the approximate number of bytes one aligner
// instance reserves for the given configuration, for capacity planning
func EstimateMemoryUsage(opts *Options, seedLen int) int64 {
	maxSeeds := maxSeedsUpperBound(opts, seedLen)
	poolSize := maxSeeds * opts.MaxHitsToConsider
	if poolSize > elementPoolCap {
		poolSize = elementPoolCap
	}
	tableSize := 64
	for tableSize < 4*poolSize {
		tableSize *= 2
	}
	const elementBytes = hashTableElementSize*32 + 128
	return int64(poolSize)*elementBytes + int64(tableSize)*16*NumDirections + int64(opts.MaxReadSize)*8
}

// maxSeedsUpperBound is the worst-case seed quota used to size the pool and
// the weight lists
func maxSeedsUpperBound(opts *Options, seedLen int) int {
	if opts.MaxSeedsToUse > 0 {
		return opts.MaxSeedsToUse
	}
	n := int(opts.MaxSeedCoverage * float64(opts.MaxReadSize) / float64(seedLen))
	if n < 1 {
		n = 1
	}
	return n
}

// computeWrapOffsets builds the seed schedule starting offsets: 0 first, then
// successive bit-reversed offsets over the next power of two at or above
// seedLen (skipping any that reach seedLen), which spreads the wrap passes
// across the gaps between the seeds already applied
func computeWrapOffsets(seedLen int) []int {
	pow2 := 1
	logLen := 0
	for pow2 < seedLen {
		pow2 *= 2
		logLen++
	}
	offsets := make([]int, 0, seedLen)
	for i := 0; i < pow2; i++ {
		rev := 0
		for b := 0; b < logLen; b++ {
			if i&(1<<uint(b)) != 0 {
				rev |= 1 << uint(logLen-1-b)
			}
		}
		if rev < seedLen {
			offsets = append(offsets, rev)
		}
	}
	if len(offsets) == 0 {
		offsets = append(offsets, 0)
	}
	return offsets
}

// AlignRead aligns one read and fills in the output set. The return value is
// true iff every secondary and deferred candidate fit in its buffer. Reads
// that cannot be aligned (too long, too many Ns) quietly come back NotFound.
func (a *Aligner) AlignRead(read *seqio.FASTQread, out *AlignmentSet) bool {
	out.reset()
	readLen := len(read.Seq)
	if readLen > a.opts.MaxReadSize || readLen < a.seedLen {
		return true
	}
	nCount := 0
	for _, b := range read.Seq {
		if b == 'N' {
			nCount++
		}
	}
	if nCount > a.opts.MaxK {
		a.stats.ReadsIgnoredBecauseOfTooManyNs++
		return true
	}

	a.prepareReadData(read)
	a.clearCandidates()
	a.scoresForAllAlignments.init()
	a.scoresForNonAltAlignments.init()
	a.scoresForAltAlignments.init()
	a.popularSeedsSkipped = 0
	for d := 0; d < NumDirections; d++ {
		a.lowestPossibleScoreOfAnyUnseenLocation[d] = 0
		a.mostSeedsContainingAnyParticularBase[d] = 1
		a.nSeedsApplied[d] = 0
	}
	for i := 0; i < readLen/8+1; i++ {
		a.seedUsed[i] = 0
	}
	for i := 0; i < readLen; i++ {
		a.seedCoverageCount[i] = 0
	}

	maxSeeds := a.numSeedsForRead(readLen)
	nPossibleSeeds := readLen - a.seedLen + 1

	seedsApplied := 0
	wrap := 0
	nextSeed := 0
	for seedsApplied < maxSeeds {
		if nextSeed >= nPossibleSeeds {
			wrap++
			if wrap >= len(a.wrapOffsets) || a.wrapOffsets[wrap] >= nPossibleSeeds {
				break
			}
			nextSeed = a.wrapOffsets[wrap]
		}
		offset := nextSeed
		nextSeed += a.seedLen
		if a.isSeedUsed(offset) {
			continue
		}
		a.setSeedUsed(offset)
		if containsN(read.Seq[offset : offset+a.seedLen]) {
			continue
		}
		if a.applySeed(read, offset) {
			if a.score(false, out) {
				break
			}
		}
		seedsApplied++
		if a.opts.StopOnFirstHit && a.scoresForAllAlignments.hasBest() && a.scoresForAllAlignments.bestScore <= a.opts.MaxK {
			break
		}
	}
	a.score(true, out)
	a.finalize(read, out)
	return !out.Overflowed()
}

// rcTranslationTable complements a base; everything ambiguous becomes N
var rcTranslationTable = func() [256]byte {
	var table [256]byte
	for i := range table {
		table[i] = 'N'
	}
	table['A'], table['C'], table['G'], table['T'] = 'T', 'G', 'C', 'A'
	return table
}()

// prepareReadData sets up the per-strand base and quality views of a read,
// reusing the construction-time buffers
func (a *Aligner) prepareReadData(read *seqio.FASTQread) {
	readLen := len(read.Seq)
	a.readLen = readLen
	a.readData[Forward] = read.Seq
	a.qualData[Forward] = read.Qual
	rc := a.rcRead[:readLen]
	rq := a.rcQual[:readLen]
	for i, j := 0, readLen-1; i < readLen; i, j = i+1, j-1 {
		rc[i] = rcTranslationTable[read.Seq[j]]
		rq[i] = read.Qual[j]
	}
	a.readData[RC] = rc
	a.qualData[RC] = rq
}

// numSeedsForRead resolves the two mutually exclusive seed quota settings;
// MaxSeedsToUse wins when both are set
func (a *Aligner) numSeedsForRead(readLen int) int {
	if a.opts.MaxSeedsToUse > 0 {
		return a.opts.MaxSeedsToUse
	}
	n := int(a.opts.MaxSeedCoverage * float64(readLen) / float64(a.seedLen))
	if n < 1 {
		n = 1
	}
	return n
}

// applySeed looks one seed up in the index and ingests its hits as
// candidates, returning whether the seed contributed any hits (false when it
// had none or was skipped as popular)
func (a *Aligner) applySeed(read *seqio.FASTQread, offset int) bool {
	seed := read.Seq[offset : offset+a.seedLen]
	forwardHits, rcHits, err := a.index.Lookup(seed)
	if err != nil {
		return false
	}
	a.stats.HashTableLookups++
	nHits := len(forwardHits) + len(rcHits)
	if nHits > a.opts.MaxHitsToConsider {
		a.popularSeedsSkipped++
		if !a.opts.ExplorePopularSeeds {
			a.stats.HitsIgnoredBecauseOfTooHighPopularity += int64(nHits)
			return false
		}
		// explore the first maxHits hits anyway, split across the strands
		half := a.opts.MaxHitsToConsider / 2
		if len(forwardHits) > half {
			a.stats.HitsIgnoredBecauseOfTooHighPopularity += int64(len(forwardHits) - half)
			forwardHits = forwardHits[:half]
		}
		if len(rcHits) > half {
			a.stats.HitsIgnoredBecauseOfTooHighPopularity += int64(len(rcHits) - half)
			rcHits = rcHits[:half]
		}
	}

	bound := a.lowestPossibleScoreOfAnyUnseenLocation
	for _, hit := range forwardHits {
		if loc := hit - int64(offset); loc >= 0 {
			a.allocateNewCandidate(loc, Forward, bound[Forward], offset)
		}
	}
	rcSeedOffset := a.readLen - a.seedLen - offset
	for _, hit := range rcHits {
		if loc := hit - int64(rcSeedOffset); loc >= 0 {
			a.allocateNewCandidate(loc, RC, bound[RC], rcSeedOffset)
		}
	}

	// coverage bookkeeping feeds the unseen-location score bound
	for i := offset; i < offset+a.seedLen; i++ {
		a.seedCoverageCount[i]++
		for d := 0; d < NumDirections; d++ {
			if int(a.seedCoverageCount[i]) > a.mostSeedsContainingAnyParticularBase[d] {
				a.mostSeedsContainingAnyParticularBase[d] = int(a.seedCoverageCount[i])
			}
		}
	}
	for d := 0; d < NumDirections; d++ {
		a.nSeedsApplied[d]++
		if !a.opts.isDisabled(DisableUnseenScoreBound) {
			if lowest := a.nSeedsApplied[d] / a.mostSeedsContainingAnyParticularBase[d]; lowest > a.lowestPossibleScoreOfAnyUnseenLocation[d] {
				a.lowestPossibleScoreOfAnyUnseenLocation[d] = lowest
			}
		}
	}
	return nHits > 0
}

func (a *Aligner) isSeedUsed(offset int) bool {
	return a.seedUsed[offset/8]&(1<<uint(offset%8)) != 0
}

func (a *Aligner) setSeedUsed(offset int) {
	a.seedUsed[offset/8] |= 1 << uint(offset%8)
}

func containsN(seed []byte) bool {
	for _, b := range seed {
		if b != 'A' && b != 'C' && b != 'G' && b != 'T' {
			return true
		}
	}
	return false
}
