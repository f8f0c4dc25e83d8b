package pipeline

import (
	"io/ioutil"
	"os"
	"testing"
)

func TestPipelineBookkeeping(t *testing.T) {
	pl := NewPipeline()
	if pl.GetNumProcesses() != 0 {
		t.Fatal("a fresh pipeline should be empty")
	}
	pl.AddProcesses(NewDataStreamer(), NewFastqHandler(), NewFastqChecker())
	if pl.GetNumProcesses() != 3 {
		t.Fatalf("expected 3 processes, got %d", pl.GetNumProcesses())
	}
}

func TestFastqHandler(t *testing.T) {
	handler := NewFastqHandler()
	handler.Input = make(chan []byte, 8)
	handler.Input <- []byte("@read-1")
	handler.Input <- []byte("ACGTACGT")
	handler.Input <- []byte("+")
	handler.Input <- []byte("IIIIIIII")
	close(handler.Input)
	go handler.Run()
	read, ok := <-handler.Output
	if !ok {
		t.Fatal("expected a read from the handler")
	}
	if string(read.ID) != "read-1" || string(read.Seq) != "ACGTACGT" {
		t.Fatalf("unexpected read: %v %v", string(read.ID), string(read.Seq))
	}
	if _, more := <-handler.Output; more {
		t.Fatal("expected exactly one read")
	}
}

func TestInfoDumpAndLoad(t *testing.T) {
	info := &Info{
		Version: "0.4.1",
		NumProc: 4,
		Index: IndexCmd{
			SeedLen:    20,
			Padding:    500,
			NumContigs: 2,
		},
		Align: AlignCmd{
			MaxK:            8,
			MaxSeedCoverage: 4.0,
			UseAffineGap:    true,
		},
	}
	tmp, err := ioutil.TempFile("", "tern-info-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmp.Name())
	tmp.Close()
	if err := info.Dump(tmp.Name()); err != nil {
		t.Fatal(err)
	}
	loaded := new(Info)
	if err := loaded.Load(tmp.Name()); err != nil {
		t.Fatal(err)
	}
	if loaded.Version != info.Version || loaded.Index.SeedLen != 20 || !loaded.Align.UseAffineGap {
		t.Fatal("runtime info did not survive the round trip")
	}
}

func TestAlignerOptionsConversion(t *testing.T) {
	cmd := &AlignCmd{
		MaxHitsToConsider:               300,
		MaxK:                            12,
		MaxReadSize:                     400,
		MaxSeedCoverage:                 4.0,
		MinWeightToCheck:                1,
		ExtraSearchDepth:                3,
		UseAffineGap:                    true,
		MaxSecondaryAlignmentsPerContig: -1,
	}
	opts := cmd.AlignerOptions()
	if opts.MaxK != 12 || opts.ExtraSearchDepth != 3 || !opts.UseAffineGap {
		t.Fatal("options were not carried over")
	}
	if opts.MatchReward != 1 || opts.GapOpenPenalty != 6 {
		t.Fatal("the scoring weights should keep their defaults")
	}
}
