// Package lv contains a Landau-Vishkin scorer: bounded unit-cost edit
// distance between a read fragment and a reference fragment, together with
// the match probability of the implied alignment. A forward variant extends
// from the left ends of both fragments, a reverse variant extends from the
// right ends; the two are used either side of a seed hit.
package lv

import "math"

// error model constants used when converting an alignment to a probability
const (
	snpProb       = 0.001
	gapOpenProb   = 0.001
	gapExtendProb = 0.5
)

// backtrack actions
const (
	actSubstitution = iota + 1
	actInsertText
	actDeletePattern
)

// probCorrect and probMismatch are indexed by the raw phred+33 quality byte
var (
	probCorrect  [256]float64
	probMismatch [256]float64
)

func init() {
	for i := 0; i < 256; i++ {
		phred := i - 33
		if phred < 1 {
			phred = 1
		}
		pe := math.Pow(10, -float64(phred)/10)
		if pe > 0.75 {
			pe = 0.75
		}
		probCorrect[i] = 1 - pe
		probMismatch[i] = pe / 3
	}
}

// Result holds the outcome of a successful distance computation. NetIndel is
// the number of reference bases consumed minus the number of read bases
// consumed, used by the caller to adjust the alignment start location.
type Result struct {
	Distance         int
	MatchProbability float64
	NetIndel         int
}

// Scorer holds the reusable DP state. A scorer is owned by a single aligner
// instance and must not be shared between goroutines.
type Scorer struct {
	maxK   int
	rows   [][]int
	back   [][]int8
	misBuf []int
	delBuf []int
}

// NewScorer is the constructor, sizing the DP arrays for distances up to maxK
func NewScorer(maxK int) *Scorer {
	scorer := &Scorer{
		maxK:   maxK,
		rows:   make([][]int, maxK+1),
		back:   make([][]int8, maxK+1),
		misBuf: make([]int, 0, maxK+1),
		delBuf: make([]int, 0, maxK+1),
	}
	for e := range scorer.rows {
		scorer.rows[e] = make([]int, 2*maxK+3)
		scorer.back[e] = make([]int8, 2*maxK+3)
	}
	return scorer
}

// ComputeEditDistance aligns pattern against text anchored at the left end of
// both, allowing at most limit edits. qual runs parallel to pattern. The
// second return value is false when the distance exceeds the limit.
func (scorer *Scorer) ComputeEditDistance(text, pattern, qual []byte, limit int) (Result, bool) {
	return scorer.compute(text, pattern, qual, limit, false)
}

// ComputeEditDistanceReverse is the variant anchored at the right end of both
// fragments, used for 5' extension
func (scorer *Scorer) ComputeEditDistanceReverse(text, pattern, qual []byte, limit int) (Result, bool) {
	return scorer.compute(text, pattern, qual, limit, true)
}

func at(buf []byte, i int, reverse bool) byte {
	if reverse {
		return buf[len(buf)-1-i]
	}
	return buf[i]
}

func (scorer *Scorer) compute(text, pattern, qual []byte, limit int, reverse bool) (Result, bool) {
	if limit < 0 {
		return Result{}, false
	}
	if limit > scorer.maxK {
		limit = scorer.maxK
	}
	patLen, textLen := len(pattern), len(text)
	if patLen == 0 {
		return Result{Distance: 0, MatchProbability: 1}, true
	}
	if textLen < patLen-limit {
		return Result{}, false
	}
	offset := scorer.maxK + 1

	// distance 0: just slide along the main diagonal
	p := 0
	for p < patLen && p < textLen && at(pattern, p, reverse) == at(text, p, reverse) {
		p++
	}
	scorer.rows[0][offset] = p
	if p == patLen {
		return Result{Distance: 0, MatchProbability: scorer.probability(pattern, qual, 0, 0, reverse)}, true
	}

	for e := 1; e <= limit; e++ {
		row, prev := scorer.rows[e], scorer.rows[e-1]
		for d := -e; d <= e; d++ {
			best, action := -1, int8(0)
			if d >= -(e-1) && d <= e-1 && prev[offset+d] >= 0 {
				if v := prev[offset+d] + 1; v > best {
					best, action = v, actSubstitution
				}
			}
			if d-1 >= -(e-1) && d-1 <= e-1 && prev[offset+d-1] >= 0 {
				if v := prev[offset+d-1]; v > best {
					best, action = v, actInsertText
				}
			}
			if d+1 >= -(e-1) && d+1 <= e-1 && prev[offset+d+1] >= 0 {
				if v := prev[offset+d+1] + 1; v > best {
					best, action = v, actDeletePattern
				}
			}
			if best > patLen {
				best = patLen
			}
			if best > textLen-d {
				best = textLen - d
			}
			if best < 0 {
				row[offset+d] = -1
				continue
			}
			for best < patLen && best+d < textLen && at(pattern, best, reverse) == at(text, best+d, reverse) {
				best++
			}
			row[offset+d] = best
			scorer.back[e][offset+d] = action
		}
		// check for completion, preferring the fewest net indels
		for a := 0; a <= e; a++ {
			for _, d := range [2]int{-a, a} {
				if row[offset+d] == patLen {
					return Result{
						Distance:         e,
						MatchProbability: scorer.probability(pattern, qual, e, d, reverse),
						NetIndel:         d,
					}, true
				}
				if a == 0 {
					break
				}
			}
		}
	}
	return Result{}, false
}

// probability walks the backtrack chain from (distance, finalD) and folds the
// per-base quality scores into a single match probability
func (scorer *Scorer) probability(pattern, qual []byte, distance, finalD int, reverse bool) float64 {
	offset := scorer.maxK + 1
	mismatches := scorer.misBuf[:0]
	deletions := scorer.delBuf[:0]
	prob := 1.0
	d := finalD
	lastAction := int8(0)
	for e := distance; e > 0; e-- {
		action := scorer.back[e][offset+d]
		switch action {
		case actSubstitution:
			mismatches = append(mismatches, scorer.rows[e-1][offset+d])
		case actInsertText:
			if lastAction == actInsertText {
				prob *= gapExtendProb
			} else {
				prob *= gapOpenProb
			}
			d = d - 1
		case actDeletePattern:
			deletions = append(deletions, scorer.rows[e-1][offset+d+1])
			if lastAction == actDeletePattern {
				prob *= gapExtendProb
			} else {
				prob *= gapOpenProb
			}
			d = d + 1
		}
		lastAction = action
	}
	for i := range pattern {
		qi := i
		if reverse {
			qi = len(qual) - 1 - i
		}
		if containsIndex(mismatches, i) {
			prob *= probMismatch[qual[qi]]
			continue
		}
		if containsIndex(deletions, i) {
			continue
		}
		prob *= probCorrect[qual[qi]]
	}
	return prob
}

func containsIndex(list []int, i int) bool {
	for _, v := range list {
		if v == i {
			return true
		}
	}
	return false
}

// ComputeHammingDistance is the degraded scoring mode: a capped mismatch
// count over equal length windows, used when the caller knows no indels are
// expected
func ComputeHammingDistance(text, pattern, qual []byte, limit int) (Result, bool) {
	if len(text) < len(pattern) {
		return Result{}, false
	}
	distance := 0
	prob := 1.0
	for i := range pattern {
		if pattern[i] == text[i] {
			prob *= probCorrect[qual[i]]
			continue
		}
		distance++
		if distance > limit {
			return Result{}, false
		}
		prob *= probMismatch[qual[i]]
	}
	return Result{Distance: distance, MatchProbability: prob}, true
}

// ProbabilityOfMatch returns the probability that every base covered by qual
// was read correctly, used for the seed region of a candidate
func ProbabilityOfMatch(qual []byte) float64 {
	prob := 1.0
	for _, q := range qual {
		prob *= probCorrect[q]
	}
	return prob
}
