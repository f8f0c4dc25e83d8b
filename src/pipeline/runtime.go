package pipeline

import (
	"fmt"
	"io/ioutil"

	"github.com/segmentio/objconv/msgpack"

	"github.com/ternlab/tern/src/aligner"
)

// Info stores the runtime information shared by the subcommands
type Info struct {
	Version   string
	NumProc   int
	Profiling bool
	Index     IndexCmd
	Align     AlignCmd
}

// IndexCmd stores the runtime info for the index command
type IndexCmd struct {
	Reference   string
	SeedLen     int
	Padding     int64
	ALTSuffixes []string
	IndexDir    string
	NumContigs  int
	NumSeeds    int
}

// AlignCmd stores the runtime info for the align command
type AlignCmd struct {
	Fastq   []string
	SamFile string

	MaxHitsToConsider                  int
	MaxK                               int
	MaxReadSize                        int
	MaxSeedsToUse                      int
	MaxSeedCoverage                    float64
	MinWeightToCheck                   int
	ExtraSearchDepth                   int
	UseAffineGap                       bool
	UseHamming                         bool
	AltAwareness                       bool
	EmitALTAlignments                  bool
	MaxScoreGapToPreferNonAltAlignment int
	MaxSecondaryAlignments             int
	MaxSecondaryAlignmentsPerContig    int
	MaxEditDistanceForSecondaryResults int
	SecondaryBufferSize                int
	ExplorePopularSeeds                bool
	StopOnFirstHit                     bool
}

// AlignerOptions converts the align command settings to an aligner option set
func (cmd *AlignCmd) AlignerOptions() *aligner.Options {
	opts := aligner.DefaultOptions()
	opts.MaxHitsToConsider = cmd.MaxHitsToConsider
	opts.MaxK = cmd.MaxK
	opts.MaxReadSize = cmd.MaxReadSize
	opts.MaxSeedsToUse = cmd.MaxSeedsToUse
	opts.MaxSeedCoverage = cmd.MaxSeedCoverage
	opts.MinWeightToCheck = cmd.MinWeightToCheck
	opts.ExtraSearchDepth = cmd.ExtraSearchDepth
	opts.UseAffineGap = cmd.UseAffineGap
	opts.UseHamming = cmd.UseHamming
	opts.AltAwareness = cmd.AltAwareness
	opts.EmitALTAlignments = cmd.EmitALTAlignments
	opts.MaxScoreGapToPreferNonAltAlignment = cmd.MaxScoreGapToPreferNonAltAlignment
	opts.MaxSecondaryAlignmentsPerContig = cmd.MaxSecondaryAlignmentsPerContig
	opts.ExplorePopularSeeds = cmd.ExplorePopularSeeds
	opts.StopOnFirstHit = cmd.StopOnFirstHit
	return opts
}

// Dump is a method to dump the pipeline info to file
func (info *Info) Dump(path string) error {
	b, err := msgpack.Marshal(info)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0644)
}

// Load is a method to load Info from file
func (info *Info) Load(path string) error {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	return info.LoadFromBytes(data)
}

// LoadFromBytes is a method to load Info from bytes
func (info *Info) LoadFromBytes(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("tern index info appears empty")
	}
	return msgpack.Unmarshal(data, info)
}
