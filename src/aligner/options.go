package aligner

import "fmt"

// DisabledOptimizations is a bitfield turning off individual short-circuits,
// used to exercise the slow paths in tests
type DisabledOptimizations uint32

// the individual optimisations
const (
	// DisableUnseenScoreBound stops the aligner estimating a lower bound on
	// the score of locations no applied seed has hit, so seeding never
	// terminates early
	DisableUnseenScoreBound DisabledOptimizations = 1 << iota

	// DisableElementScoreSkip forces scoring of elements whose lowest
	// possible score already exceeds the current search limit
	DisableElementScoreSkip

	// DisableNearbyCandidateMerge treats shifted candidates within one
	// element window as independent alignments
	DisableNearbyCandidateMerge
)

// Options holds every numeric and policy parameter of the aligner
type Options struct {
	MaxHitsToConsider int     // seeds with more hits than this are popular and skipped
	MaxK              int     // most edits an alignment may have
	MaxReadSize       int     // bounds all per-read scratch buffers
	MaxSeedsToUse     int     // seed quota per read; wins over MaxSeedCoverage when set
	MaxSeedCoverage   float64 // seed quota as a multiple of readLen/seedLen
	MinWeightToCheck  int     // elements below this weight are only scored on the final pass
	ExtraSearchDepth  int     // how far past the best score to keep looking

	UseAffineGap bool
	UseHamming   bool // mismatch-only scoring for callers that know no indels are expected

	AltAwareness                       bool
	EmitALTAlignments                  bool
	MaxScoreGapToPreferNonAltAlignment int

	IgnoreAlignmentAdjustmentsForOm bool
	MaxSecondaryAlignmentsPerContig int // -1 means unlimited

	MatchReward        int
	SubPenalty         int
	GapOpenPenalty     int
	GapExtendPenalty   int
	FivePrimeEndBonus  int
	ThreePrimeEndBonus int

	DisabledOptimizations DisabledOptimizations
	ExplorePopularSeeds   bool
	StopOnFirstHit        bool
}

// DefaultOptions returns the standard parameter set for short reads
func DefaultOptions() *Options {
	return &Options{
		MaxHitsToConsider:                  300,
		MaxK:                               8,
		MaxReadSize:                        400,
		MaxSeedsToUse:                      0,
		MaxSeedCoverage:                    4.0,
		MinWeightToCheck:                   1,
		ExtraSearchDepth:                   2,
		UseAffineGap:                       false,
		AltAwareness:                       false,
		EmitALTAlignments:                  false,
		MaxScoreGapToPreferNonAltAlignment: 3,
		MaxSecondaryAlignmentsPerContig:    -1,
		MatchReward:                        1,
		SubPenalty:                         4,
		GapOpenPenalty:                     6,
		GapExtendPenalty:                   1,
		FivePrimeEndBonus:                  10,
		ThreePrimeEndBonus:                 5,
	}
}

// validate checks the option set against the seed length of the index
func (opts *Options) validate(seedLen int) error {
	if opts.MaxSeedsToUse <= 0 && opts.MaxSeedCoverage <= 0 {
		return fmt.Errorf("one of MaxSeedsToUse and MaxSeedCoverage must be set")
	}
	if opts.MaxReadSize < seedLen {
		return fmt.Errorf("max read size (%d) is smaller than the index seed length (%d)", opts.MaxReadSize, seedLen)
	}
	if opts.MaxK <= 0 {
		return fmt.Errorf("MaxK must be positive, got %d", opts.MaxK)
	}
	if opts.ExtraSearchDepth < 0 {
		return fmt.Errorf("ExtraSearchDepth cannot be negative, got %d", opts.ExtraSearchDepth)
	}
	if opts.MaxHitsToConsider <= 0 {
		return fmt.Errorf("MaxHitsToConsider must be positive, got %d", opts.MaxHitsToConsider)
	}
	return nil
}

// isDisabled checks one bit of the DisabledOptimizations field
func (opts *Options) isDisabled(bit DisabledOptimizations) bool {
	return opts.DisabledOptimizations&bit != 0
}
