// Package genome holds the reference genome view used by the aligner: the
// concatenated, padded contig sequences plus the contig metadata needed to map
// a global reference offset back to a chromosome position.
package genome

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	bioseqio "github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"gopkg.in/vmihailenco/msgpack.v2"
)

// DefaultPadding is the number of N bases inserted before each contig so that
// alignments cannot run off one contig into the next
const DefaultPadding = 500

// Contig describes one named region of the concatenated genome
type Contig struct {
	Name              string
	BeginningLocation int64
	Length            int64
	IsALT             bool
}

// Genome is the read-only reference view. Bases holds every contig, each one
// preceded by Padding N bases. It is safe for concurrent readers once built.
type Genome struct {
	Bases   []byte
	Contigs []Contig
	Padding int64
}

// New is the constructor for an empty genome with the given chromosome padding
func New(padding int64) *Genome {
	return &Genome{Padding: padding}
}

// AddContig appends a contig and its padding to the genome
func (genome *Genome) AddContig(name string, seq []byte, isALT bool) {
	for i := int64(0); i < genome.Padding; i++ {
		genome.Bases = append(genome.Bases, 'N')
	}
	genome.Contigs = append(genome.Contigs, Contig{
		Name:              name,
		BeginningLocation: int64(len(genome.Bases)),
		Length:            int64(len(seq)),
		IsALT:             isALT,
	})
	genome.Bases = append(genome.Bases, bytes.ToUpper(seq)...)
}

// NumBases returns the total length of the concatenated genome, padding included
func (genome *Genome) NumBases() int64 {
	return int64(len(genome.Bases))
}

// GetChromosomePadding returns the number of N bases before each contig
func (genome *Genome) GetChromosomePadding() int64 {
	return genome.Padding
}

// GetSubstring returns length bases starting at the given location, or nil if
// the window falls outside the genome
func (genome *Genome) GetSubstring(location, length int64) []byte {
	if location < 0 || length < 0 || location+length > int64(len(genome.Bases)) {
		return nil
	}
	return genome.Bases[location : location+length]
}

// GetContigAtLocation returns the contig covering the given location, or nil
// if the location is in padding or out of range
func (genome *Genome) GetContigAtLocation(location int64) *Contig {
	i := sort.Search(len(genome.Contigs), func(i int) bool {
		return genome.Contigs[i].BeginningLocation > location
	})
	if i == 0 {
		return nil
	}
	contig := &genome.Contigs[i-1]
	if location >= contig.BeginningLocation+contig.Length {
		return nil
	}
	return contig
}

// ContigIndexAtLocation returns the position of the covering contig in the
// Contigs slice, or -1 when the location is in padding or out of range
func (genome *Genome) ContigIndexAtLocation(location int64) int {
	i := sort.Search(len(genome.Contigs), func(i int) bool {
		return genome.Contigs[i].BeginningLocation > location
	})
	if i == 0 {
		return -1
	}
	contig := &genome.Contigs[i-1]
	if location >= contig.BeginningLocation+contig.Length {
		return -1
	}
	return i - 1
}

// LoadFASTA reads a multi-FASTA reference into a padded genome. Contigs whose
// name ends with one of altSuffixes (case insensitive) are flagged as ALT.
func LoadFASTA(path string, padding int64, altSuffixes []string) (*Genome, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	genome := New(padding)
	template := linear.NewSeq("", nil, alphabet.DNAredundant)
	scanner := bioseqio.NewScanner(fasta.NewReader(fh, template))
	for scanner.Next() {
		seq := scanner.Seq().(*linear.Seq)
		bases := make([]byte, seq.Len())
		for i, letter := range seq.Seq {
			bases[i] = byte(letter)
		}
		genome.AddContig(seq.Name(), bases, isALTname(seq.Name(), altSuffixes))
	}
	if err := scanner.Error(); err != nil {
		return nil, fmt.Errorf("can't read fasta file: %v", err)
	}
	if len(genome.Contigs) == 0 {
		return nil, fmt.Errorf("no contigs found in fasta file: %v", path)
	}
	return genome, nil
}

// isALTname checks a contig name against the ALT naming conventions
func isALTname(name string, altSuffixes []string) bool {
	lowered := strings.ToLower(name)
	for _, suffix := range altSuffixes {
		if strings.HasSuffix(lowered, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

// Dump is a method to save the genome to file
func (genome *Genome) Dump(path string) error {
	b, err := msgpack.Marshal(genome)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0644)
}

// Load is a method to load a genome from file
func (genome *Genome) Load(path string) error {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(b, genome)
}
