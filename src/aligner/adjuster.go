package aligner

import (
	"github.com/ternlab/tern/src/seqio"
)

// adjustAlignment post-processes a committed result: alignments that poke
// out of their contig get the overhang soft clipped, and alignments that
// land entirely in padding are dropped. The score before clipping is kept
// for downstream tooling.
func (a *Aligner) adjustAlignment(read *seqio.FASTQread, result *SingleAlignmentResult) {
	if result.Status != SingleHit {
		return
	}
	alignedLen := len(read.Seq) - result.BasesClippedBefore - result.BasesClippedAfter
	end := result.Location + int64(alignedLen) - 1
	contig := a.genome.GetContigAtLocation(result.Location)
	if contig == nil {
		// the start may overhang into the padding before a contig
		contig = a.genome.GetContigAtLocation(end)
	}
	if contig == nil {
		result.Status = NotFound
		return
	}
	result.ScorePriorToClipping = result.Score
	if contigEnd := contig.BeginningLocation + contig.Length - 1; end > contigEnd {
		result.BasesClippedAfter += int(end - contigEnd)
	}
	if result.Location < contig.BeginningLocation {
		shift := int(contig.BeginningLocation - result.Location)
		result.BasesClippedBefore += shift
		result.Location = contig.BeginningLocation
	}
}
