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

	"github.com/mholt/archiver"
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
	fasta        *string   // the reference FASTA file
	seedLen      *int      // the k-mer size used for the seed index
	padding      *int      // number of N bases inserted before each contig
	altSuffixes  *[]string // contig name suffixes that mark ALT contigs
	indexDir     *string   // directory to save the index files to
	archiveIndex *bool     // tarball the index directory once written
)

// the index command (used by cobra)
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a reference genome for alignment",
	Long:  `Index a reference genome: concatenate and pad the contigs, then build the k-mer seed index`,
	Run: func(cmd *cobra.Command, args []string) {
		runIndex()
	},
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return misc.CheckRequiredFlags(cmd.Flags())
	},
}

/*
  A function to initialise the command line arguments
*/
func init() {
	fasta = indexCmd.Flags().StringP("fasta", "f", "", "reference genome in FASTA format - required")
	seedLen = indexCmd.Flags().IntP("seedLen", "k", 20, "seed length used for the k-mer index")
	padding = indexCmd.Flags().Int("padding", genome.DefaultPadding, "number of N bases inserted before each contig")
	altSuffixes = indexCmd.Flags().StringSlice("altSuffix", []string{"_alt"}, "contig name suffixes that mark ALT contigs")
	indexDir = indexCmd.Flags().StringP("indexDir", "i", "", "directory to save the index files to - required")
	archiveIndex = indexCmd.Flags().Bool("archive", false, "tarball the index directory once written")
	indexCmd.MarkFlagRequired("fasta")
	indexCmd.MarkFlagRequired("indexDir")
	RootCmd.AddCommand(indexCmd)
}

/*
  A function to check user supplied parameters
*/
func indexParamCheck() error {
	if _, err := os.Stat(*fasta); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("FASTA file does not exist: %v", *fasta)
		}
		return fmt.Errorf("can't access FASTA file (check permissions): %v", *fasta)
	}
	if *seedLen < index.MinSeedLen || *seedLen > index.MaxSeedLen {
		return fmt.Errorf("seed length must be between %d and %d", index.MinSeedLen, index.MaxSeedLen)
	}
	if *padding < 0 {
		return fmt.Errorf("padding cannot be negative")
	}
	if _, err := os.Stat(*indexDir); os.IsNotExist(err) {
		if err := os.MkdirAll(*indexDir, 0700); err != nil {
			return fmt.Errorf("can't create specified index directory")
		}
	}
	return nil
}

/*
  The main function for the index sub-command
*/
func runIndex() {
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
		log.SetOutput(os.Stdout)
	}
	// start sub command
	log.Printf("this is tern (version %s)", version.VERSION)
	log.Printf("starting the index subcommand")
	log.Printf("checking parameters...")
	misc.ErrorCheck(indexParamCheck())
	log.Printf("\treference: %v", *fasta)
	log.Printf("\tseed length: %d", *seedLen)
	log.Printf("\tchromosome padding: %d", *padding)

	// load the reference
	log.Print("loading the reference genome...")
	g, err := genome.LoadFASTA(*fasta, int64(*padding), *altSuffixes)
	misc.ErrorCheck(err)
	altCount := 0
	for _, contig := range g.Contigs {
		if contig.IsALT {
			altCount++
		}
	}
	log.Printf("\tnumber of contigs: %d (%d ALT)\n", len(g.Contigs), altCount)
	log.Printf("\ttotal genome length (padded): %d\n", g.NumBases())

	// build the seed index
	log.Print("building the seed index...")
	ix, err := index.New(*seedLen)
	misc.ErrorCheck(err)
	misc.ErrorCheck(ix.AddGenome(g))
	log.Printf("\tnumber of distinct seeds: %d\n", ix.NumSeeds())

	// save everything
	log.Printf("saving the index to \"%v/\"...", *indexDir)
	misc.ErrorCheck(g.Dump(*indexDir + "/index.genome"))
	misc.ErrorCheck(ix.Dump(*indexDir + "/index.seeds"))
	info := &pipeline.Info{
		Version: version.VERSION,
		Index: pipeline.IndexCmd{
			Reference:   *fasta,
			SeedLen:     *seedLen,
			Padding:     int64(*padding),
			ALTSuffixes: *altSuffixes,
			IndexDir:    *indexDir,
			NumContigs:  len(g.Contigs),
			NumSeeds:    ix.NumSeeds(),
		},
	}
	misc.ErrorCheck(info.Dump(*indexDir + "/index.info"))

	// archive if requested
	if *archiveIndex {
		tarball := *indexDir + ".tar.gz"
		log.Printf("archiving the index to \"%v\"...", tarball)
		misc.ErrorCheck(archiver.Archive([]string{*indexDir}, tarball))
	}
	log.Println("finished")
}
