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
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/ternlab/tern/src/genome"
	"github.com/ternlab/tern/src/index"
	"github.com/ternlab/tern/src/misc"
	"github.com/ternlab/tern/src/pipeline"
	"github.com/ternlab/tern/src/version"
)

// the command line arguments
var (
	alignIndexDir      *string   // directory containing the index files
	fastq              *[]string // list of FASTQ files to align
	samFile            *string   // SAM output file, STDOUT used if not set
	maxHits            *int      // seeds with more hits than this are ignored
	maxDist            *int      // maximum edit distance of a reported alignment
	maxReadSize        *int      // longest read the aligner accepts
	maxSeeds           *int      // seed quota per read; overrides seedCoverage when set
	seedCoverage       *float64  // seed quota expressed as read coverage
	minWeight          *int      // minimum element weight scored before the final pass
	extraSearchDepth   *int      // how far past the best score to keep searching
	affineGap          *bool     // re-score candidates with the affine-gap back-end
	hamming            *bool     // mismatch-only scoring (no indels)
	altAware           *bool     // prefer non-ALT alignments within the score gap
	emitALT            *bool     // report the displaced ALT alignment as well
	altScoreGap        *int      // score gap within which a non-ALT alignment is preferred
	maxSecondary       *int      // most secondary alignments to report per read
	maxSecondaryPerRef *int      // most secondary alignments per contig (-1 = unlimited)
	secondaryDistance  *int      // report secondaries within this edit distance of the best
	explorePopular     *bool     // score the first hits of overly popular seeds
	stopOnFirstHit     *bool     // accept the first alignment within maxDist and stop
)

// the align command (used by cobra)
var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align a set of FASTQ reads to an indexed reference genome",
	Long:  `Align a set of FASTQ reads to an indexed reference genome`,
	Run: func(cmd *cobra.Command, args []string) {
		runAlign()
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

/*
  A function to initialise the command line arguments
*/
func init() {
	alignIndexDir = alignCmd.Flags().StringP("indexDir", "i", "", "directory containing the index files - required")
	fastq = alignCmd.Flags().StringSliceP("fastq", "f", []string{}, "FASTQ file(s) to align")
	samFile = alignCmd.Flags().StringP("out", "o", "", "SAM output file, STDOUT used by default")
	maxHits = alignCmd.Flags().Int("maxHits", 300, "seeds with more hits than this are considered popular and skipped")
	maxDist = alignCmd.Flags().IntP("maxDist", "d", 8, "maximum edit distance of a reported alignment")
	maxReadSize = alignCmd.Flags().Int("maxReadSize", 400, "longest read the aligner accepts")
	maxSeeds = alignCmd.Flags().IntP("maxSeeds", "n", 0, "seed quota per read, overrides seedCoverage when set")
	seedCoverage = alignCmd.Flags().Float64("seedCoverage", 4.0, "seed quota expressed as a multiple of readLen/seedLen")
	minWeight = alignCmd.Flags().Int("minWeight", 1, "minimum element weight scored before the final pass")
	extraSearchDepth = alignCmd.Flags().Int("extraSearchDepth", 2, "how far past the best score to keep searching")
	affineGap = alignCmd.Flags().Bool("affineGap", false, "re-score candidates with the affine-gap back-end")
	hamming = alignCmd.Flags().Bool("hamming", false, "mismatch-only scoring, for reads known to have no indels")
	altAware = alignCmd.Flags().Bool("altAware", false, "prefer non-ALT alignments within the score gap")
	emitALT = alignCmd.Flags().Bool("emitALT", false, "report the displaced ALT alignment as well")
	altScoreGap = alignCmd.Flags().Int("altScoreGap", 3, "score gap within which a non-ALT alignment is preferred")
	maxSecondary = alignCmd.Flags().Int("maxSecondary", 10, "most secondary alignments to report per read")
	maxSecondaryPerRef = alignCmd.Flags().Int("maxSecondaryPerContig", -1, "most secondary alignments to report per contig, -1 for unlimited")
	secondaryDistance = alignCmd.Flags().Int("om", 0, "report secondaries within this edit distance of the best alignment")
	explorePopular = alignCmd.Flags().Bool("explorePopularSeeds", false, "score the first hits of overly popular seeds instead of skipping them")
	stopOnFirstHit = alignCmd.Flags().Bool("stopOnFirstHit", false, "accept the first alignment within maxDist and stop searching")
	alignCmd.MarkFlagRequired("indexDir")
	RootCmd.AddCommand(alignCmd)
}

/*
  A function to check user supplied parameters
*/
func alignParamCheck() error {
	// check the supplied FASTQ file(s)
	if len(*fastq) == 0 {
		stat, err := os.Stdin.Stat()
		if err != nil {
			return fmt.Errorf("error with STDIN")
		}
		if (stat.Mode() & os.ModeNamedPipe) == 0 {
			return fmt.Errorf("no STDIN found")
		}
		log.Printf("\tinput file: using STDIN")
	} else {
		for _, fastqFile := range *fastq {
			if _, err := os.Stat(fastqFile); err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("FASTQ file does not exist: %v", fastqFile)
				}
				return fmt.Errorf("can't access FASTQ file (check permissions): %v", fastqFile)
			}
			splitFilename := strings.Split(fastqFile, ".")
			if splitFilename[len(splitFilename)-1] == "gz" {
				if splitFilename[len(splitFilename)-2] == "fastq" || splitFilename[len(splitFilename)-2] == "fq" {
					continue
				}
			} else {
				if splitFilename[len(splitFilename)-1] == "fastq" || splitFilename[len(splitFilename)-1] == "fq" {
					continue
				}
			}
			return fmt.Errorf("does not look like a FASTQ file: %v", fastqFile)
		}
	}
	// check the index directory and files
	if *alignIndexDir == "" {
		return fmt.Errorf("need to specify the directory where the index files are")
	}
	if _, err := os.Stat(*alignIndexDir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("index directory does not exist: %v", *alignIndexDir)
		}
		return fmt.Errorf("can't access the index directory (check permissions): %v", *alignIndexDir)
	}
	indexFiles := [3]string{"/index.genome", "/index.seeds", "/index.info"}
	for _, indexFile := range indexFiles {
		if _, err := os.Stat(*alignIndexDir + indexFile); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("index file does not exist: %v", indexFile)
			}
			return fmt.Errorf("can't access an index file (check permissions): %v", indexFile)
		}
	}
	info := new(pipeline.Info)
	misc.ErrorCheck(info.Load(*alignIndexDir + "/index.info"))
	if info.Version != version.VERSION {
		return fmt.Errorf("the tern index was created with a different version of tern (you are currently using version %v)", version.VERSION)
	}
	// set number of processors to use
	if *proc <= 0 || *proc > runtime.NumCPU() {
		*proc = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(*proc)
	return nil
}

/*
  The main function for the align sub-command
*/
func runAlign() {
	// set up profiling
	if *profiling == true {
		defer profile.Start(profile.ProfilePath("./")).Stop()
	}
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
	log.Printf("starting the align subcommand")
	log.Printf("checking parameters...")
	misc.ErrorCheck(alignParamCheck())
	log.Printf("\tmax edit distance: %d", *maxDist)
	log.Printf("\tmax hits per seed: %d", *maxHits)
	log.Printf("\taffine gap scoring: %v", *affineGap)
	log.Printf("\tALT awareness: %v", *altAware)
	log.Printf("\tprocessors: %d", *proc)
	for _, file := range *fastq {
		log.Printf("\tinput file: %v", file)
	}

	// load the index
	log.Print("loading index information...")
	info := new(pipeline.Info)
	misc.ErrorCheck(info.Load(*alignIndexDir + "/index.info"))
	log.Printf("\tseed length: %d\n", info.Index.SeedLen)
	log.Printf("\tcontigs: %d\n", info.Index.NumContigs)
	log.Print("loading the genome...")
	g := new(genome.Genome)
	misc.ErrorCheck(g.Load(*alignIndexDir + "/index.genome"))
	log.Printf("\tgenome length (padded): %d\n", g.NumBases())
	log.Print("loading the seed index...")
	ix := new(index.Index)
	misc.ErrorCheck(ix.Load(*alignIndexDir + "/index.seeds"))
	log.Printf("\tnumber of distinct seeds: %d\n", ix.NumSeeds())

	// fill in the runtime info for the aligner workers
	info.NumProc = *proc
	info.Profiling = *profiling
	info.Align = pipeline.AlignCmd{
		Fastq:                              *fastq,
		SamFile:                            *samFile,
		MaxHitsToConsider:                  *maxHits,
		MaxK:                               *maxDist,
		MaxReadSize:                        *maxReadSize,
		MaxSeedsToUse:                      *maxSeeds,
		MaxSeedCoverage:                    *seedCoverage,
		MinWeightToCheck:                   *minWeight,
		ExtraSearchDepth:                   *extraSearchDepth,
		UseAffineGap:                       *affineGap,
		UseHamming:                         *hamming,
		AltAwareness:                       *altAware,
		EmitALTAlignments:                  *emitALT,
		MaxScoreGapToPreferNonAltAlignment: *altScoreGap,
		MaxSecondaryAlignments:             *maxSecondary,
		MaxSecondaryAlignmentsPerContig:    *maxSecondaryPerRef,
		MaxEditDistanceForSecondaryResults: *secondaryDistance,
		SecondaryBufferSize:                *maxSecondary * 4,
		ExplorePopularSeeds:                *explorePopular,
		StopOnFirstHit:                     *stopOnFirstHit,
	}

	// create the pipeline
	log.Printf("initialising alignment pipeline...")
	alignmentPipeline := pipeline.NewPipeline()

	// initialise processes
	log.Printf("\tinitialising the processes")
	dataStream := pipeline.NewDataStreamer()
	fastqHandler := pipeline.NewFastqHandler()
	fastqChecker := pipeline.NewFastqChecker()
	readAligner := pipeline.NewReadAligner(info, g, ix)
	samWriter := pipeline.NewSamWriter(g, *samFile, version.VERSION)

	// add in the process parameters
	dataStream.InputFile = *fastq

	// arrange pipeline processes
	log.Printf("\tconnecting data streams")
	fastqHandler.Input = dataStream.Output
	fastqChecker.Input = fastqHandler.Output
	readAligner.Input = fastqChecker.Output
	samWriter.Input = readAligner.Output

	// submit each process to the pipeline to be run
	alignmentPipeline.AddProcesses(dataStream, fastqHandler, fastqChecker, readAligner, samWriter)
	log.Printf("\tnumber of processes added to the alignment pipeline: %d\n", alignmentPipeline.GetNumProcesses())
	alignmentPipeline.Run()
	log.Println("finished")
}
