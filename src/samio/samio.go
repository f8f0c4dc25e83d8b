// Package samio converts alignment results to SAM records and writes them
// out. It is the boundary between the aligner core and the biogo/hts SAM
// machinery: all CIGAR formatting beyond match/soft-clip stays out of scope.
package samio

import (
	"fmt"
	"io"

	"github.com/biogo/hts/sam"

	"github.com/ternlab/tern/src/aligner"
	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/seqio"
)

// Writer emits SAM records for alignment results
type Writer struct {
	sw         *sam.Writer
	genome     *genome.Genome
	references []*sam.Reference
}

// NewWriter is the constructor: it builds the @SQ lines from the genome's
// contigs, stamps an @PG line and writes the header
func NewWriter(w io.Writer, g *genome.Genome, programVersion string) (*Writer, error) {
	references := make([]*sam.Reference, len(g.Contigs))
	for i, contig := range g.Contigs {
		ref, err := sam.NewReference(contig.Name, "", "", int(contig.Length), nil, nil)
		if err != nil {
			return nil, fmt.Errorf("can't create SAM reference for contig %v: %v", contig.Name, err)
		}
		references[i] = ref
	}
	header, err := sam.NewHeader(nil, references)
	if err != nil {
		return nil, fmt.Errorf("can't create SAM header: %v", err)
	}
	if err := header.AddProgram(sam.NewProgram("tern", "tern", "tern align", "", programVersion)); err != nil {
		return nil, fmt.Errorf("can't add program line to SAM header: %v", err)
	}
	sw, err := sam.NewWriter(w, header, sam.FlagDecimal)
	if err != nil {
		return nil, err
	}
	return &Writer{sw: sw, genome: g, references: references}, nil
}

// WriteAlignment converts one result to a SAM record and writes it. The
// caller passes the read as it was aligned (forward orientation); reverse
// strand hits are written reverse complemented, as SAM requires.
func (writer *Writer) WriteAlignment(read *seqio.FASTQread, result *aligner.SingleAlignmentResult, secondary bool) error {
	if result.Status != aligner.SingleHit {
		return writer.WriteUnmapped(read)
	}
	contigIdx := writer.genome.ContigIndexAtLocation(result.Location)
	if contigIdx < 0 {
		return writer.WriteUnmapped(read)
	}
	contig := &writer.genome.Contigs[contigIdx]
	pos := int(result.Location - contig.BeginningLocation)

	seq := read.Seq
	qual := read.Qual
	var flags sam.Flags
	if result.Direction == aligner.RC {
		flags |= sam.Reverse
		seq = seqio.RevComplementSeq(read.Seq)
		qual = reverseQual(read.Qual)
	}
	if secondary {
		flags |= sam.Secondary
	}
	if result.Supplementary {
		flags |= sam.Supplementary
	}

	cigar := buildCigar(len(read.Seq), result)
	record, err := sam.NewRecord(string(read.ID), writer.references[contigIdx], nil,
		pos, -1, 0, byte(result.MAPQ), cigar, seq, qual, nil)
	if err != nil {
		return fmt.Errorf("can't create SAM record for read %v: %v", string(read.ID), err)
	}
	record.Flags |= flags
	return writer.sw.Write(record)
}

// WriteUnmapped emits the record for a read without an alignment
func (writer *Writer) WriteUnmapped(read *seqio.FASTQread) error {
	record, err := sam.NewRecord(string(read.ID), nil, nil, -1, -1, 0, 0, nil, read.Seq, read.Qual, nil)
	if err != nil {
		return fmt.Errorf("can't create SAM record for read %v: %v", string(read.ID), err)
	}
	record.Flags |= sam.Unmapped
	return writer.sw.Write(record)
}

// buildCigar emits the soft-clip/match shape of a result; anything finer
// grained is the concern of a downstream formatter
func buildCigar(readLen int, result *aligner.SingleAlignmentResult) []sam.CigarOp {
	var cigar []sam.CigarOp
	if result.BasesClippedBefore > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, result.BasesClippedBefore))
	}
	aligned := readLen - result.BasesClippedBefore - result.BasesClippedAfter
	if aligned > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarMatch, aligned))
	}
	if result.BasesClippedAfter > 0 {
		cigar = append(cigar, sam.NewCigarOp(sam.CigarSoftClipped, result.BasesClippedAfter))
	}
	return cigar
}

func reverseQual(qual []byte) []byte {
	rq := make([]byte, len(qual))
	for i, j := 0, len(qual)-1; i < len(qual); i, j = i+1, j-1 {
		rq[i] = qual[j]
	}
	return rq
}
