// Package affinegap contains the affine-gap scoring back-end: a full
// dynamic-programming alignment of a read against a reference window, with
// soft clipping at either end of the read, end bonuses, and a reference
// offset correction when the optimal alignment starts shifted from the
// candidate location.
package affinegap

import "math"

// traceback steps
const (
	stepStart = iota
	stepDiagonal
	stepVertical   // gap in the reference, consumes read bases
	stepHorizontal // gap in the read, consumes reference bases
)

const minScore = math.MinInt32 / 2

// gap and mismatch probabilities for the match probability estimate
const (
	gapOpenProb   = 0.001
	gapExtendProb = 0.5
)

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

// Params are the scoring weights
type Params struct {
	MatchReward        int
	SubPenalty         int
	GapOpenPenalty     int
	GapExtendPenalty   int
	FivePrimeEndBonus  int
	ThreePrimeEndBonus int
}

// Result describes the best scoring alignment found in a reference window
type Result struct {
	Score              int // bonuses included
	EditDistance       int
	BasesClippedBefore int
	BasesClippedAfter  int
	RefStart           int // column in the supplied window where the alignment begins
	MatchProbability   float64
}

// matrix is a flat int32 matrix, grown on demand (never shrunk)
type matrix struct {
	cols  int
	cells []int32
}

func (m *matrix) ensureSize(rows, cols int) {
	m.cols = cols
	total := rows * cols
	if total <= cap(m.cells) {
		m.cells = m.cells[:total]
	} else {
		m.cells = make([]int32, total)
	}
}

func (m *matrix) at(row, col int) int32     { return m.cells[row*m.cols+col] }
func (m *matrix) set(row, col int, v int32) { m.cells[row*m.cols+col] = v }

// Scorer holds the reusable DP state for one aligner instance
type Scorer struct {
	params           Params
	hPrev, hCur      []int32
	ePrev, eCur      []int32
	fCur             []int32
	step, vLen, hLen matrix
}

// NewScorer is the constructor
func NewScorer(params Params) *Scorer {
	return &Scorer{params: params}
}

// Score aligns readSeq (with qualities qual) against refSeq, which is the
// reference window the candidate location maps into. The alignment may clip
// either end of the read and may begin at any column of the window. The
// second return value is false when the best alignment's edit distance
// exceeds limit or no alignment was found.
func (scorer *Scorer) Score(readSeq, qual, refSeq []byte, limit int) (Result, bool) {
	m, n := len(readSeq), len(refSeq)
	if m == 0 || n == 0 {
		return Result{}, false
	}
	scorer.resize(m, n)
	p := scorer.params

	// row 0: the alignment may start at any reference column, and starting
	// with the first read base earns the 5' end bonus
	for j := 0; j <= n; j++ {
		scorer.hPrev[j] = int32(p.FivePrimeEndBonus)
		scorer.ePrev[j] = minScore
		scorer.step.set(0, j, stepStart)
	}

	bestScore, bestI, bestJ := int32(minScore), 0, 0
	for i := 1; i <= m; i++ {
		scorer.hCur[0] = 0 // clipped start at column 0
		scorer.eCur[0] = minScore
		scorer.fCur[0] = minScore
		scorer.step.set(i, 0, stepStart)
		for j := 1; j <= n; j++ {
			// vertical: a reference gap consuming read base i
			e, eLen := scorer.hPrev[j]-int32(p.GapOpenPenalty), int32(1)
			if v := scorer.ePrev[j] - int32(p.GapExtendPenalty); v > e {
				e, eLen = v, scorer.vLen.at(i-1, j)+1
			}
			scorer.eCur[j] = e
			scorer.vLen.set(i, j, eLen)

			// horizontal: a read gap consuming reference base j
			f, fLen := scorer.hCur[j-1]-int32(p.GapOpenPenalty), int32(1)
			if v := scorer.fCur[j-1] - int32(p.GapExtendPenalty); v > f {
				f, fLen = v, scorer.hLen.at(i, j-1)+1
			}
			scorer.fCur[j] = f
			scorer.hLen.set(i, j, fLen)

			diag := scorer.hPrev[j-1]
			if readSeq[i-1] == refSeq[j-1] && readSeq[i-1] != 'N' {
				diag += int32(p.MatchReward)
			} else {
				diag -= int32(p.SubPenalty)
			}

			h, step := int32(0), stepStart // soft clip restart
			if diag > h {
				h, step = diag, stepDiagonal
			}
			if e > h {
				h, step = e, stepVertical
			}
			if f > h {
				h, step = f, stepHorizontal
			}
			scorer.hCur[j] = h
			scorer.step.set(i, j, int32(step))

			// candidate endings: clipped (any cell) or full-length with bonus
			candidate := h
			if i == m {
				candidate += int32(p.ThreePrimeEndBonus)
			}
			if candidate > bestScore || (candidate == bestScore && i > bestI) {
				bestScore, bestI, bestJ = candidate, i, j
			}
		}
		scorer.hPrev, scorer.hCur = scorer.hCur, scorer.hPrev
		scorer.ePrev, scorer.eCur = scorer.eCur, scorer.ePrev
	}
	if bestScore <= 0 {
		return Result{}, false
	}
	return scorer.traceback(readSeq, qual, refSeq, bestScore, bestI, bestJ, limit)
}

func (scorer *Scorer) resize(m, n int) {
	need := n + 1
	if cap(scorer.hPrev) < need {
		scorer.hPrev = make([]int32, need)
		scorer.hCur = make([]int32, need)
		scorer.ePrev = make([]int32, need)
		scorer.eCur = make([]int32, need)
		scorer.fCur = make([]int32, need)
	} else {
		scorer.hPrev = scorer.hPrev[:need]
		scorer.hCur = scorer.hCur[:need]
		scorer.ePrev = scorer.ePrev[:need]
		scorer.eCur = scorer.eCur[:need]
		scorer.fCur = scorer.fCur[:need]
	}
	scorer.step.ensureSize(m+1, n+1)
	scorer.vLen.ensureSize(m+1, n+1)
	scorer.hLen.ensureSize(m+1, n+1)
}

// traceback walks the step matrix back from the chosen end cell, counting
// edits and folding the qualities into a match probability
func (scorer *Scorer) traceback(readSeq, qual, refSeq []byte, bestScore int32, endI, endJ, limit int) (Result, bool) {
	m := len(readSeq)
	i, j := endI, endJ
	edits := 0
	prob := 1.0
	for {
		switch scorer.step.at(i, j) {
		case stepDiagonal:
			if readSeq[i-1] == refSeq[j-1] && readSeq[i-1] != 'N' {
				prob *= probCorrect[qual[i-1]]
			} else {
				edits++
				prob *= probMismatch[qual[i-1]]
			}
			i, j = i-1, j-1
		case stepVertical:
			gap := int(scorer.vLen.at(i, j))
			edits += gap
			prob *= gapOpenProb * math.Pow(gapExtendProb, float64(gap-1))
			i -= gap
		case stepHorizontal:
			gap := int(scorer.hLen.at(i, j))
			edits += gap
			prob *= gapOpenProb * math.Pow(gapExtendProb, float64(gap-1))
			j -= gap
		default: // stepStart
			result := Result{
				Score:              int(bestScore),
				EditDistance:       edits,
				BasesClippedBefore: i,
				BasesClippedAfter:  m - endI,
				RefStart:           j,
				MatchProbability:   prob,
			}
			if edits > limit {
				return result, false
			}
			return result, true
		}
	}
}
