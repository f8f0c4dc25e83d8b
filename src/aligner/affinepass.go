package aligner

import (
	"github.com/ternlab/tern/src/seqio"
)

// AlignAffineGap re-scores the candidates AlignRead deferred (plus the
// primary itself) with the affine-gap back-end and rebuilds the primary,
// firstALT and secondary outputs from the affine-gap scores. It must be
// called with the same read as the preceding AlignRead. The return value
// mirrors AlignRead: true iff nothing overflowed.
func (a *Aligner) AlignAffineGap(read *seqio.FASTQread, out *AlignmentSet) bool {
	if !a.opts.UseAffineGap || out.Primary.Status == NotFound {
		return true
	}
	a.prepareReadData(read)
	readLen := len(read.Seq)
	margin := a.opts.MaxK + 1

	// the primary joins the deferred candidates; skip shifted copies of a
	// window already queued
	a.agRescoreBuf = a.agRescoreBuf[:0]
	a.agRescoreBuf = append(a.agRescoreBuf, out.Primary)
	for i := range out.AffineGapCandidates {
		c := &out.AffineGapCandidates[i]
		seen := false
		for j := range a.agRescoreBuf {
			if a.sameAlignment(a.agRescoreBuf[j].OrigLocation, a.agRescoreBuf[j].Direction, c.OrigLocation, c.Direction) {
				seen = true
				break
			}
		}
		if !seen {
			a.agRescoreBuf = append(a.agRescoreBuf, *c)
		}
	}

	var allSet, nonAltSet, altSet scoreSet
	allSet.init()
	nonAltSet.init()
	altSet.init()
	out.Secondary = out.Secondary[:0]
	out.NSecondary = 0
	out.overflowedSecondary = false
	out.FirstALT = SingleAlignmentResult{Status: NotFound}

	for i := range a.agRescoreBuf {
		c := &a.agRescoreBuf[i]
		readSeq := a.readData[c.Direction]
		qual := a.qualData[c.Direction]

		refStart := c.OrigLocation - int64(margin)
		if refStart < 0 {
			refStart = 0
		}
		window := int64(readLen + 2*margin)
		if refStart+window > a.genome.NumBases() {
			window = a.genome.NumBases() - refStart
		}
		ref := a.genome.GetSubstring(refStart, window)
		if ref == nil {
			continue
		}
		res, ok := a.agScorer.Score(readSeq, qual, ref, a.opts.MaxK+a.opts.ExtraSearchDepth)
		if !ok {
			continue
		}
		a.stats.LocationsScoredAffineGap++

		location := refStart + int64(res.RefStart)
		alignedLen := readLen - res.BasesClippedBefore - res.BasesClippedAfter
		if alignedLen <= 0 {
			continue
		}
		startContig := a.genome.GetContigAtLocation(location)
		endContig := a.genome.GetContigAtLocation(location + int64(alignedLen) - 1)
		if startContig == nil || endContig == nil || startContig != endContig {
			continue
		}

		r := SingleAlignmentResult{
			Status:               SingleHit,
			Location:             location,
			OrigLocation:         c.OrigLocation,
			Direction:            c.Direction,
			Score:                res.EditDistance,
			ScorePriorToClipping: res.EditDistance,
			MatchProbability:     res.MatchProbability,
			AGScore:              res.Score,
			UsedAffineGapScoring: true,
			BasesClippedBefore:   res.BasesClippedBefore,
			BasesClippedAfter:    res.BasesClippedAfter,
			SeedOffset:           c.SeedOffset,
		}
		a.updateScoreSet(&allSet, &r, 0, out, true)
		if startContig.IsALT {
			a.updateScoreSet(&altSet, &r, 0, nil, false)
		} else {
			a.updateScoreSet(&nonAltSet, &r, 0, nil, false)
		}
	}

	if allSet.hasBest() {
		a.finalizeWithSets(read, out, &allSet, &nonAltSet, &altSet)
	}
	return !out.Overflowed()
}
