// Package seqio contains the sequence types and helper functions used by tern
package seqio

import (
	"bytes"
	"fmt"
	"unicode"
)

// complementTable is used to get the complement of a DNA base, everything ambiguous becomes N
var complementTable = [256]byte{
	'A': 'T', 'a': 't',
	'C': 'G', 'c': 'g',
	'G': 'C', 'g': 'c',
	'T': 'A', 't': 'a',
}

func init() {
	for i := 0; i < 256; i++ {
		if complementTable[i] == 0 {
			complementTable[i] = 'N'
		}
	}
}

// Sequence is the base type, holding an id and the sequence itself
type Sequence struct {
	ID  []byte
	Seq []byte
}

// FASTQread is a sequence plus the per-base quality scores (phred+33 encoded)
type FASTQread struct {
	Sequence
	Misc []byte
	Qual []byte
	RC   bool
}

// NewFASTQread is the constructor, taking the four lines of a FASTQ entry
func NewFASTQread(l1 []byte, l2 []byte, l3 []byte, l4 []byte) (FASTQread, error) {
	if len(l1) == 0 || l1[0] != '@' {
		return FASTQread{}, fmt.Errorf("read ID in fastq entry missing the @ prefix: %v", string(l1))
	}
	if len(l3) == 0 || l3[0] != '+' {
		return FASTQread{}, fmt.Errorf("fastq entry missing the + separator: %v", string(l1))
	}
	if len(l2) != len(l4) {
		return FASTQread{}, fmt.Errorf("sequence and quality lines differ in length for read: %v", string(l1))
	}
	// split the ID at the first whitespace so that the read name matches what downstream tools expect
	id := l1[1:]
	if i := bytes.IndexFunc(id, unicode.IsSpace); i > 0 {
		id = id[:i]
	}
	return FASTQread{
		Sequence: Sequence{ID: id, Seq: bytes.ToUpper(l2)},
		Misc:     l3,
		Qual:     l4,
	}, nil
}

// RevComplement is a method to reverse complement a read in place, reversing the qualities as well
func (read *FASTQread) RevComplement() {
	for i, j := 0, len(read.Seq)-1; i <= j; i, j = i+1, j-1 {
		read.Seq[i], read.Seq[j] = complementTable[read.Seq[j]], complementTable[read.Seq[i]]
	}
	for i, j := 0, len(read.Qual)-1; i < j; i, j = i+1, j-1 {
		read.Qual[i], read.Qual[j] = read.Qual[j], read.Qual[i]
	}
	read.RC = !read.RC
}

// QualTrim is a method to quality trim the sequence of a read using a sliding cut off
func (read *FASTQread) QualTrim(minQual int) {
	start, qualSum, qualMax := 0, 0, 0
	end := len(read.Qual)
	for i, qual := range read.Qual {
		qualSum += minQual - (int(qual) - 33)
		if qualSum < 0 {
			break
		}
		if qualSum > qualMax {
			qualMax = qualSum
			start = i + 1
		}
	}
	qualSum, qualMax = 0, 0
	for i, j := 0, len(read.Qual)-1; j >= 0; i, j = i+1, j-1 {
		qualSum += minQual - (int(read.Qual[j]) - 33)
		if qualSum < 0 {
			break
		}
		if qualSum > qualMax {
			qualMax = qualSum
			end = j
		}
	}
	if end < start {
		start, end = 0, 0
	}
	read.Seq = read.Seq[start:end]
	read.Qual = read.Qual[start:end]
}

// RevComplementSeq returns the reverse complement of a sequence as a fresh slice
func RevComplementSeq(seq []byte) []byte {
	rc := make([]byte, len(seq))
	for i, j := 0, len(seq)-1; i < len(seq); i, j = i+1, j-1 {
		rc[i] = complementTable[seq[j]]
	}
	return rc
}
