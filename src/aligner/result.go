package aligner

// Direction marks which strand of the read an alignment refers to
type Direction int

// the two strands
const (
	Forward Direction = iota
	RC
	NumDirections = 2
)

// AlignmentStatus reports whether an alignment was found for a read
type AlignmentStatus int

// alignment statuses
const (
	NotFound AlignmentStatus = iota
	SingleHit
)

// SingleAlignmentResult describes one reported alignment of a read
type SingleAlignmentResult struct {
	Status                    AlignmentStatus
	Location                  int64 // adjusted location, where the alignment actually begins
	OrigLocation              int64 // location before scorer adjustment, used for cache bookkeeping
	Direction                 Direction
	Score                     int // edit distance
	ScorePriorToClipping      int
	MAPQ                      int
	MatchProbability          float64
	AGScore                   int
	UsedAffineGapScoring      bool
	BasesClippedBefore        int
	BasesClippedAfter         int
	SeedOffset                int
	ClippingForReadAdjustment int
	Supplementary             bool
}

// AlignmentSet bundles the output buffers for one AlignRead call. The caller
// owns the buffers and reuses the set across reads; AlignRead resets it on
// entry. The secondary and affine-gap buffers stop filling when their
// capacity is reached but the counters keep counting, and AlignRead returns
// false when anything was dropped.
type AlignmentSet struct {
	Primary              SingleAlignmentResult
	FirstALT             SingleAlignmentResult
	Secondary            []SingleAlignmentResult
	NSecondary           int
	AffineGapCandidates  []SingleAlignmentResult
	NAffineGapCandidates int

	// MaxEditDistanceForSecondaryResults bounds how far behind the best
	// score a reported secondary may be
	MaxEditDistanceForSecondaryResults int

	// MaxSecondaryResults truncates the final secondary list when positive
	MaxSecondaryResults int

	overflowedSecondary bool
	overflowedAffineGap bool
}

// NewAlignmentSet is the constructor, fixing the two buffer capacities
func NewAlignmentSet(secondaryBufferSize, affineGapBufferSize, maxEditDistanceForSecondaryResults int) *AlignmentSet {
	return &AlignmentSet{
		Secondary:                          make([]SingleAlignmentResult, 0, secondaryBufferSize),
		AffineGapCandidates:                make([]SingleAlignmentResult, 0, affineGapBufferSize),
		MaxEditDistanceForSecondaryResults: maxEditDistanceForSecondaryResults,
	}
}

// reset clears the set for the next read without touching buffer capacity
func (set *AlignmentSet) reset() {
	set.Primary = SingleAlignmentResult{Status: NotFound}
	set.FirstALT = SingleAlignmentResult{Status: NotFound}
	set.Secondary = set.Secondary[:0]
	set.NSecondary = 0
	set.AffineGapCandidates = set.AffineGapCandidates[:0]
	set.NAffineGapCandidates = 0
	set.overflowedSecondary = false
	set.overflowedAffineGap = false
}

// Overflowed reports whether either output buffer filled up on the last call
func (set *AlignmentSet) Overflowed() bool {
	return set.overflowedSecondary || set.overflowedAffineGap
}
