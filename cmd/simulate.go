// Copyright © 2023 the tern authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/leesper/go_rng"
	"github.com/spf13/cobra"

	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/misc"
	"github.com/ternlab/tern/src/seqio"
	"github.com/ternlab/tern/src/version"
)

// the command line arguments
var (
	simIndexDir *string  // directory containing the index files
	numReads    *int     // number of reads to simulate
	readLen     *int     // length of each simulated read
	errorRate   *float64 // per-base substitution error rate
	rngSeed     *int64   // seed for the random number generators
	simOut      *string  // FASTQ output file, STDOUT used if not set
)

// the simulate command (used by cobra)
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate FASTQ reads from an indexed reference genome",
	Long:  `Simulate FASTQ reads from an indexed reference genome, for smoke testing an index and the aligner`,
	Run: func(cmd *cobra.Command, args []string) {
		runSimulate()
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

/*
  A function to initialise the command line arguments
*/
func init() {
	simIndexDir = simulateCmd.Flags().StringP("indexDir", "i", "", "directory containing the index files - required")
	numReads = simulateCmd.Flags().IntP("numReads", "n", 1000, "number of reads to simulate")
	readLen = simulateCmd.Flags().IntP("readLen", "l", 100, "length of each simulated read")
	errorRate = simulateCmd.Flags().Float64P("errorRate", "e", 0.01, "per-base substitution error rate")
	rngSeed = simulateCmd.Flags().Int64("seed", 1, "seed for the random number generators")
	simOut = simulateCmd.Flags().StringP("out", "o", "", "FASTQ output file, STDOUT used by default")
	simulateCmd.MarkFlagRequired("indexDir")
	RootCmd.AddCommand(simulateCmd)
}

/*
  A function to check user supplied parameters
*/
func simulateParamCheck() error {
	if _, err := os.Stat(*simIndexDir + "/index.genome"); err != nil {
		return fmt.Errorf("can't access the genome index file in %v", *simIndexDir)
	}
	if *numReads <= 0 {
		return fmt.Errorf("number of reads must be positive")
	}
	if *readLen <= 0 {
		return fmt.Errorf("read length must be positive")
	}
	if *errorRate < 0.0 || *errorRate > 1.0 {
		return fmt.Errorf("error rate must be between 0.0 and 1.0")
	}
	return nil
}

/*
  The main function for the simulate sub-command
*/
func runSimulate() {
	// start logging
	if *logFile != "" {
		logFH := misc.StartLogging(*logFile)
		defer logFH.Close()
		log.SetOutput(logFH)
	} else {
		log.SetOutput(os.Stderr)
	}
	// start sub command
	log.Printf("this is tern (version %s)", version.VERSION)
	log.Printf("starting the simulate subcommand")
	log.Printf("checking parameters...")
	misc.ErrorCheck(simulateParamCheck())
	log.Printf("\treads: %d", *numReads)
	log.Printf("\tread length: %d", *readLen)
	log.Printf("\terror rate: %.4f", *errorRate)

	// load the genome
	log.Print("loading the genome...")
	g := new(genome.Genome)
	misc.ErrorCheck(g.Load(*simIndexDir + "/index.genome"))
	log.Printf("\tnumber of contigs: %d\n", len(g.Contigs))

	// set up the output
	out := os.Stdout
	if *simOut != "" {
		fh, err := os.Create(*simOut)
		misc.ErrorCheck(err)
		defer fh.Close()
		out = fh
	}
	writer := bufio.NewWriter(out)
	defer writer.Flush()

	// set up the generators: uniform draws pick positions, strands and error
	// sites, gaussian draws shape the quality string
	uniform := rng.NewUniformGenerator(*rngSeed)
	gaussian := rng.NewGaussianGenerator(*rngSeed + 1)
	bases := []byte("ACGT")
	var totalLength int64
	for _, contig := range g.Contigs {
		totalLength += contig.Length
	}

	written := 0
	for written < *numReads {
		// pick a contig weighted by length, then a start within it
		pick := uniform.Int64n(totalLength)
		contigIdx := 0
		for pick >= g.Contigs[contigIdx].Length {
			pick -= g.Contigs[contigIdx].Length
			contigIdx++
		}
		contig := &g.Contigs[contigIdx]
		if contig.Length < int64(*readLen) {
			continue
		}
		start := contig.BeginningLocation + uniform.Int64n(contig.Length-int64(*readLen)+1)
		seq := append([]byte(nil), g.GetSubstring(start, int64(*readLen))...)
		if containsAmbiguous(seq) {
			continue
		}
		// reverse complement half of the reads
		rc := uniform.Float64() < 0.5
		if rc {
			seq = seqio.RevComplementSeq(seq)
		}
		// sprinkle in substitution errors and make the qualities
		qual := make([]byte, *readLen)
		for i := range seq {
			if uniform.Float64() < *errorRate {
				replacement := bases[uniform.Int64n(4)]
				for replacement == seq[i] {
					replacement = bases[uniform.Int64n(4)]
				}
				seq[i] = replacement
			}
			phred := int(gaussian.Gaussian(30, 5))
			if phred < 2 {
				phred = 2
			}
			if phred > 40 {
				phred = 40
			}
			qual[i] = byte(phred + 33)
		}
		strand := '+'
		if rc {
			strand = '-'
		}
		fmt.Fprintf(writer, "@tern_sim_%d_%v_%d_%c\n%s\n+\n%s\n", written, contig.Name, start-contig.BeginningLocation, strand, seq, qual)
		written++
	}
	log.Printf("\treads written: %d\n", written)
	log.Println("finished")
}

// containsAmbiguous reports whether a sequence has anything besides ACGT
func containsAmbiguous(seq []byte) bool {
	for _, b := range seq {
		if b != 'A' && b != 'C' && b != 'G' && b != 'T' {
			return true
		}
	}
	return false
}
