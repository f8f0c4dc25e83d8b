package aligner

import (
	"bytes"
	"math"
	"math/bits"
	"sort"

	"github.com/ternlab/tern/src/lv"
	"github.com/ternlab/tern/src/seqio"
)

// score drains the weight index from the highest used list downward, scoring
// every candidate of every element it visits. With forceResult set it drains
// all the way down to weight 1 so no lingering candidate is lost. The return
// value tells the seed loop whether no remaining location could improve on
// the current best, so seeding may stop.
func (a *Aligner) score(forceResult bool, out *AlignmentSet) bool {
	minWeight := a.opts.MinWeightToCheck
	if minWeight < 1 || forceResult {
		minWeight = 1
	}
	for w := a.highestUsedWeightList; w >= minWeight; {
		idx := a.weightListHeads[w]
		if idx == nilIndex {
			w--
			continue
		}
		elem := &a.pool[idx]
		if !a.opts.isDisabled(DisableElementScoreSkip) && elem.lowestPossibleScore > a.currentScoreLimit() {
			// this element can never improve on the best, drop it
			a.unlinkFromWeightList(idx)
			elem.allExtantCandidatesScored = true
			continue
		}
		a.scoreElement(idx, out)
		a.unlinkFromWeightList(idx)
		elem.allExtantCandidatesScored = true
	}

	if a.opts.StopOnFirstHit && a.scoresForAllAlignments.hasBest() && a.scoresForAllAlignments.bestScore <= a.opts.MaxK {
		return true
	}
	if a.opts.isDisabled(DisableUnseenScoreBound) {
		return false
	}
	limit := a.currentScoreLimit()
	return a.lowestPossibleScoreOfAnyUnseenLocation[Forward] > limit &&
		a.lowestPossibleScoreOfAnyUnseenLocation[RC] > limit
}

// currentScoreLimit is the largest score still worth finding
func (a *Aligner) currentScoreLimit() int {
	limit := a.opts.MaxK
	if a.scoresForAllAlignments.hasBest() {
		if l := a.scoresForAllAlignments.bestScore + a.opts.ExtraSearchDepth; l < limit {
			limit = l
		}
	}
	return limit
}

// scoreElement scores every unscored candidate of one element, lowest slot
// first
func (a *Aligner) scoreElement(idx int32, out *AlignmentSet) {
	for {
		elem := &a.pool[idx]
		remaining := elem.candidatesUsed &^ elem.candidatesScored
		if remaining == 0 {
			return
		}
		slot := bits.TrailingZeros64(remaining)
		a.scoreCandidate(idx, slot, out)
	}
}

// scoreCandidate runs the active scoring back-end over one candidate
// location and folds the outcome into the element and the score sets
func (a *Aligner) scoreCandidate(idx int32, slot int, out *AlignmentSet) {
	elem := &a.pool[idx]
	cand := &elem.candidates[slot]
	elem.candidatesScored |= uint64(1) << uint(slot)
	cand.matchProbability = 0

	location := cand.origGenomeLocation
	direction := elem.direction
	readSeq := a.readData[direction]
	qual := a.qualData[direction]
	seedOffset := cand.seedOffset

	scoreLimit := a.currentScoreLimit() - elem.lowestPossibleScore + 1
	if scoreLimit < 0 {
		cand.score = scoreExceededValue
		return
	}

	// the seed itself must match the reference exactly; this also rejects
	// the occasional hash-collision hit from the seed index
	refSeed := a.genome.GetSubstring(location+int64(seedOffset), int64(a.seedLen))
	if refSeed == nil || !bytes.Equal(refSeed, readSeq[seedOffset:seedOffset+a.seedLen]) {
		cand.score = scoreExceededValue
		return
	}

	var score int
	var matchProbability float64
	adjustedLocation := location
	if a.opts.UseHamming {
		text := a.genome.GetSubstring(location, int64(a.readLen))
		if text == nil {
			cand.score = scoreExceededValue
			return
		}
		result, ok := lv.ComputeHammingDistance(text, readSeq, qual, scoreLimit)
		if !ok {
			cand.score = scoreExceededValue
			return
		}
		score = result.Distance
		matchProbability = result.MatchProbability
		a.stats.LocationsScoredHamming++
	} else {
		// 3' extension from the end of the seed
		tailStart := seedOffset + a.seedLen
		tail := readSeq[tailStart:]
		textLen := int64(len(tail) + scoreLimit + 1)
		if max := a.genome.NumBases() - (location + int64(tailStart)); textLen > max {
			textLen = max
		}
		if textLen < 0 {
			cand.score = scoreExceededValue
			return
		}
		text := a.genome.GetSubstring(location+int64(tailStart), textLen)
		tailResult, ok := a.lvScorer.ComputeEditDistance(text, tail, qual[tailStart:], scoreLimit)
		if !ok {
			cand.score = scoreExceededValue
			return
		}
		// 5' extension backwards from the start of the seed
		head := readSeq[:seedOffset]
		budget := scoreLimit - tailResult.Distance
		headTextLen := int64(len(head) + budget + 1)
		if headTextLen > location+int64(seedOffset) {
			headTextLen = location + int64(seedOffset)
		}
		headText := a.genome.GetSubstring(location+int64(seedOffset)-headTextLen, headTextLen)
		headResult, ok := a.lvScorer.ComputeEditDistanceReverse(headText, head, qual[:seedOffset], budget)
		if !ok {
			cand.score = scoreExceededValue
			return
		}
		score = tailResult.Distance + headResult.Distance
		matchProbability = tailResult.MatchProbability * headResult.MatchProbability *
			lv.ProbabilityOfMatch(qual[seedOffset:tailStart])
		adjustedLocation = location - int64(headResult.NetIndel)
		a.stats.LocationsScoredLandauVishkin++
	}

	// an alignment that crosses out of its contig is dropped outright
	startContig := a.genome.GetContigAtLocation(adjustedLocation)
	endContig := a.genome.GetContigAtLocation(adjustedLocation + int64(a.readLen) - 1)
	if startContig == nil || endContig == nil || startContig != endContig {
		cand.score = scoreExceededValue
		return
	}

	cand.score = score
	cand.matchProbability = matchProbability
	agScore := a.opts.MatchReward*(a.readLen-score) - a.opts.SubPenalty*score

	a.recordCandidateScore(idx, slot, score, agScore, matchProbability, adjustedLocation, out)
}

// recordCandidateScore folds a scored candidate into its element's best and
// then into the two score sets. Candidates within one element window count
// as shifted versions of the same alignment: only the best one carries
// probability mass, and replacing it swaps the mass rather than adding.
func (a *Aligner) recordCandidateScore(idx int32, slot int, score, agScore int, matchProbability float64, adjustedLocation int64, out *AlignmentSet) {
	elem := &a.pool[idx]
	cand := &elem.candidates[slot]
	hadBest := elem.bestScore != UnusedScoreValue
	better := agScore > elem.agScore ||
		(agScore == elem.agScore && matchProbability > elem.matchProbabilityForBestScore)

	if hadBest && !better {
		if !a.opts.isDisabled(DisableNearbyCandidateMerge) {
			return
		}
	}

	replaced := 0.0
	if hadBest && better && !a.opts.isDisabled(DisableNearbyCandidateMerge) {
		replaced = elem.matchProbabilityForBestScore
		if elem.bestScoreOrigGenomeLocation != cand.origGenomeLocation {
			a.stats.IndelsMerged++
		}
	}

	if better || !hadBest {
		elem.bestScore = score
		elem.agScore = agScore
		elem.matchProbabilityForBestScore = matchProbability
		elem.bestScoreGenomeLocation = adjustedLocation
		elem.bestScoreOrigGenomeLocation = cand.origGenomeLocation
		elem.basesClippedBefore = 0
		elem.basesClippedAfter = 0
		elem.seedOffset = cand.seedOffset
		elem.usedAffineGapScoring = false
	}

	result := SingleAlignmentResult{
		Status:               SingleHit,
		Location:             adjustedLocation,
		OrigLocation:         cand.origGenomeLocation,
		Direction:            elem.direction,
		Score:                score,
		ScorePriorToClipping: score,
		MatchProbability:     matchProbability,
		AGScore:              agScore,
		SeedOffset:           cand.seedOffset,
	}

	a.updateScoreSet(&a.scoresForAllAlignments, &result, replaced, out, true)
	if elem.isALT {
		a.updateScoreSet(&a.scoresForAltAlignments, &result, replaced, nil, false)
	} else {
		a.updateScoreSet(&a.scoresForNonAltAlignments, &result, replaced, nil, false)
	}

	if a.opts.UseAffineGap && score > 0 {
		a.deferToAffineGap(out, &result)
	}
}

// updateScoreSet applies the best-rotation rules to one score set; out is
// only written for the set that records secondaries
func (a *Aligner) updateScoreSet(s *scoreSet, r *SingleAlignmentResult, replaced float64, out *AlignmentSet, record bool) {
	s.addProbability(r.MatchProbability, replaced)
	if !s.dominatedBy(r.AGScore, r.MatchProbability) {
		if record && out != nil {
			a.recordSecondary(out, *r, s)
		}
		return
	}
	if s.hasBest() && !a.sameAlignment(s.bestScoreOrigGenomeLocation, s.bestScoreDirection, r.OrigLocation, r.Direction) {
		if record && out != nil {
			a.recordSecondary(out, s.bestAsResult(), s)
		}
	}
	s.install(r)
}

// sameAlignment treats two candidates as shifted copies of one alignment
// when they fall in the same element window on the same strand
func (a *Aligner) sameAlignment(loc1 int64, dir1 Direction, loc2 int64, dir2 Direction) bool {
	if dir1 != dir2 {
		return false
	}
	base1, _ := decomposeGenomeLocation(loc1)
	base2, _ := decomposeGenomeLocation(loc2)
	return base1 == base2
}

// recordSecondary appends a candidate to the secondary buffer, continuing to
// count after the buffer fills so the caller can size a retry
func (a *Aligner) recordSecondary(out *AlignmentSet, r SingleAlignmentResult, s *scoreSet) {
	if r.Score > a.opts.MaxK {
		return
	}
	if s.hasBest() && r.Score > s.bestScore+out.MaxEditDistanceForSecondaryResults {
		return
	}
	out.NSecondary++
	if len(out.Secondary) < cap(out.Secondary) {
		out.Secondary = append(out.Secondary, r)
	} else {
		out.overflowedSecondary = true
	}
}

// deferToAffineGap queues a candidate for re-scoring with the affine-gap
// back-end
func (a *Aligner) deferToAffineGap(out *AlignmentSet, r *SingleAlignmentResult) {
	out.NAffineGapCandidates++
	if len(out.AffineGapCandidates) < cap(out.AffineGapCandidates) {
		out.AffineGapCandidates = append(out.AffineGapCandidates, *r)
	} else {
		out.overflowedAffineGap = true
	}
}

// finalize commits the primary result, the ALT selection and the secondary
// list once scoring is complete
func (a *Aligner) finalize(read *seqio.FASTQread, out *AlignmentSet) {
	a.finalizeWithSets(read, out, &a.scoresForAllAlignments, &a.scoresForNonAltAlignments, &a.scoresForAltAlignments)
}

// finalizeWithSets picks the primary between the ALT and non-ALT views and
// fills FirstALT. The rule is symmetric: an ALT best within the score gap of
// a non-ALT candidate is demoted to FirstALT, and a non-ALT best with a
// competitive ALT candidate gets that candidate as FirstALT.
func (a *Aligner) finalizeWithSets(read *seqio.FASTQread, out *AlignmentSet, allSet, nonAltSet, altSet *scoreSet) {
	chosen := allSet
	if a.opts.AltAwareness && allSet.hasBest() {
		if contig := a.genome.GetContigAtLocation(allSet.bestScoreGenomeLocation); contig != nil && contig.IsALT {
			if nonAltSet.hasBest() &&
				nonAltSet.bestScore <= allSet.bestScore+a.opts.MaxScoreGapToPreferNonAltAlignment {
				chosen = nonAltSet
			}
		}
	}

	if !chosen.hasBest() || chosen.bestScore > a.opts.MaxK {
		out.Primary = SingleAlignmentResult{Status: NotFound}
		out.Secondary = out.Secondary[:0]
		out.NSecondary = 0
		return
	}

	out.Primary = chosen.bestAsResult()
	out.Primary.MAPQ = a.computeMAPQ(chosen)
	a.adjustAlignment(read, &out.Primary)

	// whenever the primary ends up on the primary assembly and a competitive
	// ALT alignment exists, report the ALT alongside it
	if a.opts.AltAwareness && a.opts.EmitALTAlignments && altSet.hasBest() {
		primaryContig := a.genome.GetContigAtLocation(out.Primary.Location)
		if primaryContig != nil && !primaryContig.IsALT &&
			altSet.bestScore <= chosen.bestScore+a.opts.MaxScoreGapToPreferNonAltAlignment {
			out.FirstALT = altSet.bestAsResult()
			out.FirstALT.MAPQ = a.computeMAPQ(altSet)
			a.adjustAlignment(read, &out.FirstALT)
		}
	}

	a.finalizeSecondaryResults(out)
}

// computeMAPQ converts the probability mass of a score set into a phred
// scaled mapping quality, discounted for the ways the search may have missed
// the true best location
func (a *Aligner) computeMAPQ(s *scoreSet) int {
	q := 70.0
	if s.probabilityOfAllCandidates > s.probabilityOfBestCandidate && s.probabilityOfAllCandidates > 0 {
		frac := s.probabilityOfBestCandidate / s.probabilityOfAllCandidates
		if frac < 1 {
			q = -10 * math.Log10(1-frac)
		}
	}
	mapq := int(math.Round(q))
	mapq -= 3 * a.popularSeedsSkipped
	if a.wrapCount > 0 {
		mapq -= 5
	}
	if mapq < 0 {
		mapq = 0
	}
	if mapq > 70 {
		mapq = 70
	}
	return mapq
}

// finalizeSecondaryResults filters, dedupes, orders and truncates the
// secondary buffer against the final primary
func (a *Aligner) finalizeSecondaryResults(out *AlignmentSet) {
	list := out.Secondary
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score < list[j].Score
		}
		if list[i].AGScore != list[j].AGScore {
			return list[i].AGScore > list[j].AGScore
		}
		if list[i].MatchProbability != list[j].MatchProbability {
			return list[i].MatchProbability > list[j].MatchProbability
		}
		if list[i].Location != list[j].Location {
			return list[i].Location < list[j].Location
		}
		return list[i].Direction < list[j].Direction
	})

	maxPerContig := a.opts.MaxSecondaryAlignmentsPerContig
	// a fresh counter epoch per finalisation, so the affine-gap re-run does
	// not inherit the counts of the unit-cost pass
	a.contigCountEpoch++
	a.countContigHit(out.Primary.Location)

	kept := list[:0]
	for _, r := range list {
		if r.Score > out.Primary.Score+out.MaxEditDistanceForSecondaryResults {
			continue
		}
		if a.duplicateOf(&r, &out.Primary) {
			continue
		}
		if out.FirstALT.Status == SingleHit && a.duplicateOf(&r, &out.FirstALT) {
			continue
		}
		duplicate := false
		for k := range kept {
			if a.duplicateOf(&r, &kept[k]) {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		if maxPerContig >= 0 && !a.countContigHitWithin(r.Location, maxPerContig) {
			continue
		}
		kept = append(kept, r)
		if out.MaxSecondaryResults > 0 && len(kept) >= out.MaxSecondaryResults {
			break
		}
	}
	out.Secondary = kept
	// after an overflow the counter keeps the number of secondaries offered,
	// so the caller can size a larger buffer
	if !out.overflowedSecondary {
		out.NSecondary = len(kept)
	}
}

// duplicateOf compares two results by reported location and direction; the
// adjusted location is used unless the caller asked to ignore adjustments.
// Locations less than one element window apart count as the same alignment
// shifted.
func (a *Aligner) duplicateOf(r1, r2 *SingleAlignmentResult) bool {
	if r1.Direction != r2.Direction {
		return false
	}
	loc1, loc2 := r1.Location, r2.Location
	if a.opts.IgnoreAlignmentAdjustmentsForOm {
		loc1, loc2 = r1.OrigLocation, r2.OrigLocation
	}
	d := loc1 - loc2
	if d < 0 {
		d = -d
	}
	return d < hashTableElementSize
}

// countContigHit registers one reported alignment against a contig
func (a *Aligner) countContigHit(location int64) {
	if idx := a.genome.ContigIndexAtLocation(location); idx >= 0 {
		counts := &a.hitsPerContig[idx]
		if counts.epoch != a.contigCountEpoch {
			counts.epoch = a.contigCountEpoch
			counts.hits = 0
		}
		counts.hits++
	}
}

// countContigHitWithin registers a hit only while the contig is under its
// cap, reporting whether the hit was admitted
func (a *Aligner) countContigHitWithin(location int64, maxPerContig int) bool {
	idx := a.genome.ContigIndexAtLocation(location)
	if idx < 0 {
		return false
	}
	counts := &a.hitsPerContig[idx]
	if counts.epoch != a.contigCountEpoch {
		counts.epoch = a.contigCountEpoch
		counts.hits = 0
	}
	if counts.hits >= maxPerContig {
		return false
	}
	counts.hits++
	return true
}
