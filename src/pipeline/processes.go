package pipeline

import (
	"bufio"
	"compress/gzip"
	"errors"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/ternlab/tern/src/aligner"
	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/index"
	"github.com/ternlab/tern/src/misc"
	"github.com/ternlab/tern/src/samio"
	"github.com/ternlab/tern/src/seqio"
)

// AlignedRead carries a read and everything the aligner reported for it
type AlignedRead struct {
	Read      seqio.FASTQread
	Primary   aligner.SingleAlignmentResult
	FirstALT  aligner.SingleAlignmentResult
	Secondary []aligner.SingleAlignmentResult
}

// DataStreamer is a pipeline process that streams data from STDIN/file
type DataStreamer struct {
	process
	Output    chan []byte
	InputFile []string
}

// NewDataStreamer is the constructor
func NewDataStreamer() *DataStreamer {
	return &DataStreamer{Output: make(chan []byte, BUFFERSIZE)}
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *DataStreamer) Run() {
	defer close(proc.Output)
	var scanner *bufio.Scanner
	// if an input file path has not been provided, scan the contents of STDIN
	if len(proc.InputFile) == 0 {
		scanner = bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			// important: copy content of scan to a new slice before sending, this avoids race conditions (as we are using multiple go routines) from concurrent slice access
			proc.Output <- append([]byte(nil), scanner.Bytes()...)
		}
		if scanner.Err() != nil {
			log.Fatal(scanner.Err())
		}
		return
	}
	for i := 0; i < len(proc.InputFile); i++ {
		fh, err := os.Open(proc.InputFile[i])
		misc.ErrorCheck(err)
		defer fh.Close()
		// handle gzipped input
		splitFilename := strings.Split(proc.InputFile[i], ".")
		if splitFilename[len(splitFilename)-1] == "gz" {
			gz, err := gzip.NewReader(fh)
			misc.ErrorCheck(err)
			defer gz.Close()
			scanner = bufio.NewScanner(gz)
		} else {
			scanner = bufio.NewScanner(fh)
		}
		for scanner.Scan() {
			proc.Output <- append([]byte(nil), scanner.Bytes()...)
		}
		if scanner.Err() != nil {
			log.Fatal(scanner.Err())
		}
	}
}

// FastqHandler is a pipeline process to generate FASTQ reads from a stream of bytes
type FastqHandler struct {
	process
	Input  chan []byte
	Output chan seqio.FASTQread
}

// NewFastqHandler is the constructor
func NewFastqHandler() *FastqHandler {
	return &FastqHandler{Output: make(chan seqio.FASTQread, BUFFERSIZE)}
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *FastqHandler) Run() {
	defer close(proc.Output)
	var l1, l2, l3, l4 []byte
	// grab four lines and create a new FASTQread struct from them
	for line := range proc.Input {
		if l1 == nil {
			l1 = line
		} else if l2 == nil {
			l2 = line
		} else if l3 == nil {
			l3 = line
		} else if l4 == nil {
			l4 = line
			newRead, err := seqio.NewFASTQread(l1, l2, l3, l4)
			if err != nil {
				log.Fatal(err)
			}
			// send on the new read and reset the line stores
			proc.Output <- newRead
			l1, l2, l3, l4 = nil, nil, nil, nil
		}
	}
}

// FastqChecker is a process to tally the incoming reads and report some stats
type FastqChecker struct {
	process
	Input  chan seqio.FASTQread
	Output chan seqio.FASTQread
}

// NewFastqChecker is the constructor
func NewFastqChecker() *FastqChecker {
	return &FastqChecker{Output: make(chan seqio.FASTQread, BUFFERSIZE)}
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *FastqChecker) Run() {
	defer close(proc.Output)
	log.Printf("now streaming reads...")
	rawCount, lengthTotal := 0, 0
	for read := range proc.Input {
		rawCount++
		lengthTotal += len(read.Seq)
		proc.Output <- read
	}
	if rawCount == 0 {
		misc.ErrorCheck(errors.New("no fastq reads received"))
	}
	log.Printf("\tnumber of reads received from input: %d\n", rawCount)
	meanRL := float64(lengthTotal) / float64(rawCount)
	log.Printf("\tmean read length: %.0f\n", meanRL)
}

// ReadAligner is the process that drives the alignment engine. One aligner
// instance runs per worker; the genome and seed index are shared read-only.
type ReadAligner struct {
	process
	Input  chan seqio.FASTQread
	Output chan AlignedRead
	Info   *Info
	Genome *genome.Genome
	Index  *index.Index

	statsMutex sync.Mutex
	stats      aligner.Stats
}

// NewReadAligner is the constructor
func NewReadAligner(info *Info, g *genome.Genome, ix *index.Index) *ReadAligner {
	return &ReadAligner{
		Output: make(chan AlignedRead, BUFFERSIZE),
		Info:   info,
		Genome: g,
		Index:  ix,
	}
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *ReadAligner) Run() {
	defer close(proc.Output)
	var wg sync.WaitGroup
	wg.Add(proc.Info.NumProc)
	for i := 0; i < proc.Info.NumProc; i++ {
		go func(workerNum int) {
			defer wg.Done()
			opts := proc.Info.Align.AlignerOptions()
			engine, err := aligner.New(proc.Genome, proc.Index, opts)
			misc.ErrorCheck(err)
			out := aligner.NewAlignmentSet(
				proc.Info.Align.SecondaryBufferSize,
				proc.Info.Align.SecondaryBufferSize,
				proc.Info.Align.MaxEditDistanceForSecondaryResults)
			out.MaxSecondaryResults = proc.Info.Align.MaxSecondaryAlignments
			for read := range proc.Input {
				engine.AlignRead(&read, out)
				if opts.UseAffineGap {
					engine.AlignAffineGap(&read, out)
				}
				aligned := AlignedRead{
					Read:    read,
					Primary: out.Primary,
				}
				aligned.FirstALT = out.FirstALT
				if len(out.Secondary) > 0 {
					aligned.Secondary = append([]aligner.SingleAlignmentResult(nil), out.Secondary...)
				}
				proc.Output <- aligned
			}
			proc.statsMutex.Lock()
			proc.stats.Add(engine.Stats())
			proc.statsMutex.Unlock()
		}(i)
	}
	wg.Wait()
	log.Printf("\thash table lookups: %d\n", proc.stats.HashTableLookups)
	log.Printf("\tlocations scored with Landau-Vishkin: %d\n", proc.stats.LocationsScoredLandauVishkin)
	log.Printf("\tlocations scored with affine gap: %d\n", proc.stats.LocationsScoredAffineGap)
	log.Printf("\thits ignored from popular seeds: %d\n", proc.stats.HitsIgnoredBecauseOfTooHighPopularity)
	log.Printf("\treads ignored due to Ns: %d\n", proc.stats.ReadsIgnoredBecauseOfTooManyNs)
	log.Printf("\tindels merged during candidate coalescing: %d\n", proc.stats.IndelsMerged)
}

// SamWriter is the final pipeline process, converting alignment results to
// SAM records
type SamWriter struct {
	process
	Input   chan AlignedRead
	Genome  *genome.Genome
	SamFile string
	Version string
}

// NewSamWriter is the constructor
func NewSamWriter(g *genome.Genome, samFile, version string) *SamWriter {
	return &SamWriter{Genome: g, SamFile: samFile, Version: version}
}

// Run is the method to run this process, which satisfies the pipeline interface
func (proc *SamWriter) Run() {
	out := os.Stdout
	if proc.SamFile != "" {
		fh, err := os.Create(proc.SamFile)
		misc.ErrorCheck(err)
		defer fh.Close()
		out = fh
	}
	buffered := bufio.NewWriter(out)
	defer buffered.Flush()
	writer, err := samio.NewWriter(buffered, proc.Genome, proc.Version)
	misc.ErrorCheck(err)

	readTally, mappedTally, multimappedTally := 0, 0, 0
	for aligned := range proc.Input {
		readTally++
		misc.ErrorCheck(writer.WriteAlignment(&aligned.Read, &aligned.Primary, false))
		if aligned.Primary.Status == aligner.SingleHit {
			mappedTally++
		}
		if aligned.FirstALT.Status == aligner.SingleHit {
			misc.ErrorCheck(writer.WriteAlignment(&aligned.Read, &aligned.FirstALT, true))
		}
		if len(aligned.Secondary) > 0 {
			multimappedTally++
			for i := range aligned.Secondary {
				misc.ErrorCheck(writer.WriteAlignment(&aligned.Read, &aligned.Secondary[i], true))
			}
		}
	}
	if readTally == 0 {
		misc.ErrorCheck(errors.New("no reads were received by the SAM writer"))
	}
	log.Printf("\ttotal number of reads processed: %d\n", readTally)
	log.Printf("\ttotal number of mapped reads: %d\n", mappedTally)
	log.Printf("\t\tuniquely mapped: %d\n", (mappedTally - multimappedTally))
	log.Printf("\t\tmultimapped: %d\n", multimappedTally)
}
