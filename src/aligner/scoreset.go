package aligner

import "math"

// minAGScore is the identity for the affine-gap score maximum
const minAGScore = math.MinInt32 / 2

// scoreSet tracks the running best alignment plus the probability mass of
// everything scored so far. Three instances run in parallel per read: one
// over all candidates, one restricted to non-ALT contigs and one restricted
// to ALT contigs.
type scoreSet struct {
	bestScore                     int
	bestScoreGenomeLocation       int64
	bestScoreOrigGenomeLocation   int64
	bestScoreDirection            Direction
	bestScoreUsedAffineGapScoring bool
	bestScoreBasesClippedBefore   int
	bestScoreBasesClippedAfter    int
	bestScoreAGScore              int
	bestScoreSeedOffset           int
	bestScoreMatchProbability     float64

	probabilityOfAllCandidates float64
	probabilityOfBestCandidate float64
}

// init resets the set for a new read
func (s *scoreSet) init() {
	*s = scoreSet{
		bestScore:        UnusedScoreValue,
		bestScoreAGScore: minAGScore,
	}
}

// hasBest reports whether any candidate has been installed as best
func (s *scoreSet) hasBest() bool {
	return s.bestScore != UnusedScoreValue
}

// dominatedBy reports whether a new (agScore, matchProbability) pair beats
// the current best; ties keep the incumbent, so discovery order decides
func (s *scoreSet) dominatedBy(agScore int, matchProbability float64) bool {
	if agScore != s.bestScoreAGScore {
		return agScore > s.bestScoreAGScore
	}
	return matchProbability > s.bestScoreMatchProbability
}

// install replaces the best alignment held by the set
func (s *scoreSet) install(r *SingleAlignmentResult) {
	s.bestScore = r.Score
	s.bestScoreGenomeLocation = r.Location
	s.bestScoreOrigGenomeLocation = r.OrigLocation
	s.bestScoreDirection = r.Direction
	s.bestScoreUsedAffineGapScoring = r.UsedAffineGapScoring
	s.bestScoreBasesClippedBefore = r.BasesClippedBefore
	s.bestScoreBasesClippedAfter = r.BasesClippedAfter
	s.bestScoreAGScore = r.AGScore
	s.bestScoreSeedOffset = r.SeedOffset
	s.bestScoreMatchProbability = r.MatchProbability
	s.probabilityOfBestCandidate = r.MatchProbability
}

// addProbability adds a candidate's probability mass, optionally first
// removing the mass of an earlier shifted version of the same alignment.
// The subtraction clamps at zero so floating point drift never goes negative.
func (s *scoreSet) addProbability(p, replaced float64) {
	if replaced > 0 {
		s.probabilityOfAllCandidates -= replaced
		if s.probabilityOfAllCandidates < 0 {
			s.probabilityOfAllCandidates = 0
		}
	}
	s.probabilityOfAllCandidates += p
}

// bestAsResult copies the best alignment out as a result
func (s *scoreSet) bestAsResult() SingleAlignmentResult {
	return SingleAlignmentResult{
		Status:               SingleHit,
		Location:             s.bestScoreGenomeLocation,
		OrigLocation:         s.bestScoreOrigGenomeLocation,
		Direction:            s.bestScoreDirection,
		Score:                s.bestScore,
		ScorePriorToClipping: s.bestScore,
		MatchProbability:     s.bestScoreMatchProbability,
		AGScore:              s.bestScoreAGScore,
		UsedAffineGapScoring: s.bestScoreUsedAffineGapScoring,
		BasesClippedBefore:   s.bestScoreBasesClippedBefore,
		BasesClippedAfter:    s.bestScoreBasesClippedAfter,
		SeedOffset:           s.bestScoreSeedOffset,
	}
}
