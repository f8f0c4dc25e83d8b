package aligner

import "math/bits"

// Each hash table element covers a window of hashTableElementSize consecutive
// reference locations, so candidates that differ only by a small indel end up
// in the same element and are treated as one alignment. Must be even and <= 64.
const hashTableElementSize = 48

// UnusedScoreValue marks a candidate that has not been scored yet
const UnusedScoreValue = 0xffff

// scoreExceededValue marks a candidate whose score went over the search
// limit; it stays below UnusedScoreValue so the unused test still works
const scoreExceededValue = 0xfffe

const nilIndex = int32(-1)

// candidate is one proposed alignment location within an element's window
type candidate struct {
	score              int
	seedOffset         int
	matchProbability   float64
	origGenomeLocation int64
}

// hashTableElement bundles the candidates of one reference window on one
// strand. Elements live in a slab and link to each other by pool index, both
// along the hash bucket chain and along their weight list.
type hashTableElement struct {
	weightNext int32
	weightPrev int32
	bucketNext int32
	linked     bool

	candidatesUsed   uint64
	candidatesScored uint64

	baseGenomeLocation  int64
	direction           Direction
	weight              int
	lowestPossibleScore int
	isALT               bool

	bestScore                    int
	agScore                      int
	bestScoreGenomeLocation      int64
	bestScoreOrigGenomeLocation  int64
	matchProbabilityForBestScore float64
	usedAffineGapScoring         bool
	basesClippedBefore           int
	basesClippedAfter            int
	seedOffset                   int
	allExtantCandidatesScored    bool

	candidates [hashTableElementSize]candidate
}

// hashTableAnchor is one bucket head. The element chain is only valid while
// the epoch matches the aligner's; a stale epoch means the bucket is empty.
type hashTableAnchor struct {
	element int32
	epoch   uint64
}

// locationHash is deliberately weak: the tables are sized generously and the
// cost of computing the hash dominates its quality
func locationHash(key uint64) uint64 {
	return key * 131
}

// decomposeGenomeLocation splits a location into its element window base and
// the candidate slot within the window
func decomposeGenomeLocation(location int64) (base int64, slot int) {
	slot = int(location % hashTableElementSize)
	return location - int64(slot), slot
}

// findElement looks up the element covering a location on one strand. It
// returns the pool index (or nilIndex) plus the bucket so the caller can
// prepend a fresh element.
func (a *Aligner) findElement(location int64, direction Direction) (int32, uint64) {
	base, _ := decomposeGenomeLocation(location)
	bucket := locationHash(uint64(base)/hashTableElementSize) & a.tableMask
	anchor := &a.anchors[direction][bucket]
	if anchor.epoch != a.epoch {
		return nilIndex, bucket
	}
	for idx := anchor.element; idx != nilIndex; idx = a.pool[idx].bucketNext {
		if a.pool[idx].baseGenomeLocation == base {
			return idx, bucket
		}
	}
	return nilIndex, bucket
}

// findCandidate looks up the candidate for an exact location, returning nil
// when either the element or the slot is missing
func (a *Aligner) findCandidate(location int64, direction Direction) (*candidate, int32) {
	idx, _ := a.findElement(location, direction)
	if idx == nilIndex {
		return nil, nilIndex
	}
	_, slot := decomposeGenomeLocation(location)
	elem := &a.pool[idx]
	if elem.candidatesUsed&(uint64(1)<<uint(slot)) == 0 {
		return nil, idx
	}
	return &elem.candidates[slot], idx
}

// allocateNewCandidate records a seed hit as a candidate, creating the
// covering element if needed. When the element pool is exhausted the hit is
// silently dropped and wrapCount records the loss for the MAPQ discount.
func (a *Aligner) allocateNewCandidate(location int64, direction Direction, lowestPossibleScore, seedOffset int) {
	idx, bucket := a.findElement(location, direction)
	base, slot := decomposeGenomeLocation(location)
	if idx == nilIndex {
		if a.nUsedElements >= len(a.pool) {
			a.wrapCount++
			return
		}
		idx = int32(a.nUsedElements)
		a.nUsedElements++
		elem := &a.pool[idx]
		*elem = hashTableElement{
			weightNext:          nilIndex,
			weightPrev:          nilIndex,
			bucketNext:          nilIndex,
			baseGenomeLocation:  base,
			direction:           direction,
			lowestPossibleScore: lowestPossibleScore,
			bestScore:           UnusedScoreValue,
			agScore:             minAGScore,
		}
		// flag by the hit location, not the window base: the base can sit in
		// the padding run before a contig
		if contig := a.genome.GetContigAtLocation(location); contig != nil {
			elem.isALT = contig.IsALT
		}
		anchor := &a.anchors[direction][bucket]
		if anchor.epoch == a.epoch {
			elem.bucketNext = anchor.element
		}
		anchor.element = idx
		anchor.epoch = a.epoch
	}
	elem := &a.pool[idx]
	bit := uint64(1) << uint(slot)
	if elem.candidatesUsed&bit != 0 {
		// the slot is already a candidate; keep the earlier seed offset
		// unless the candidate is still unscored
		if elem.candidates[slot].score == UnusedScoreValue {
			elem.candidates[slot].seedOffset = seedOffset
		}
		return
	}
	elem.candidatesUsed |= bit
	elem.candidates[slot] = candidate{
		score:              UnusedScoreValue,
		seedOffset:         seedOffset,
		origGenomeLocation: location,
	}
	if lowestPossibleScore < elem.lowestPossibleScore {
		elem.lowestPossibleScore = lowestPossibleScore
	}
	elem.allExtantCandidatesScored = false
	a.incrementWeight(idx)
}

// incrementWeight bumps an element's weight and moves it to the head of the
// matching weight list
func (a *Aligner) incrementWeight(idx int32) {
	elem := &a.pool[idx]
	if elem.linked {
		a.unlinkFromWeightList(idx)
	}
	elem.weight = bits.OnesCount64(elem.candidatesUsed)
	w := a.weightListFor(elem.weight)
	elem.weightNext = a.weightListHeads[w]
	elem.weightPrev = nilIndex
	if a.weightListHeads[w] != nilIndex {
		a.pool[a.weightListHeads[w]].weightPrev = idx
	}
	a.weightListHeads[w] = idx
	elem.linked = true
	if w > a.highestUsedWeightList {
		a.highestUsedWeightList = w
	}
}

// unlinkFromWeightList removes an element from its current weight list
func (a *Aligner) unlinkFromWeightList(idx int32) {
	elem := &a.pool[idx]
	if !elem.linked {
		return
	}
	w := a.weightListFor(elem.weight)
	if elem.weightPrev != nilIndex {
		a.pool[elem.weightPrev].weightNext = elem.weightNext
	} else if a.weightListHeads[w] == idx {
		a.weightListHeads[w] = elem.weightNext
	}
	if elem.weightNext != nilIndex {
		a.pool[elem.weightNext].weightPrev = elem.weightPrev
	}
	elem.weightNext, elem.weightPrev = nilIndex, nilIndex
	elem.linked = false
}

// weightListFor clamps a weight to the available list heads
func (a *Aligner) weightListFor(weight int) int {
	if weight >= len(a.weightListHeads) {
		return len(a.weightListHeads) - 1
	}
	return weight
}

// clearCandidates resets the candidate store for the next read. Bumping the
// epoch invalidates every hash anchor in O(1); only the weight list heads up
// to the high-water mark are touched.
func (a *Aligner) clearCandidates() {
	a.epoch++
	for w := 0; w <= a.highestUsedWeightList; w++ {
		a.weightListHeads[w] = nilIndex
	}
	a.highestUsedWeightList = 0
	a.nUsedElements = 0
	a.wrapCount = 0
}
