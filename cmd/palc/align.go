package main

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/palc/HmmUFOtu/cmd/util"
	"github.com/palc/HmmUFOtu/hmm"
	"github.com/palc/HmmUFOtu/seq"
)

// progressThreshold is the query count at or above which a progress bar
// is shown.
const progressThreshold = 50

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align FASTA queries against a profile, one TSV row per read",
	Run:   runAlign,
}

func init() {
	alignCmd.Flags().StringP("model", "m", "", "profile HMM file")
	alignCmd.Flags().StringP("in", "i", "", "FASTA query file")
	alignCmd.Flags().StringP("out", "o", "", "TSV output file (default stdout)")
	alignCmd.Flags().StringP("mode", "s", "local", "flank mode: global, local, ngcl or cgnl")

	rootCmd.AddCommand(alignCmd)
}

func runAlign(cmd *cobra.Command, args []string) {
	model, _ := cmd.Flags().GetString("model")
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	modeName, _ := cmd.Flags().GetString("mode")
	if model == "" || in == "" {
		util.Fatalf("align needs both --model and --in")
	}
	mode, ok := modeOf(modeName)
	if !ok {
		util.Fatalf("unknown flank mode '%s'", modeName)
	}

	h := util.ProfileRead(model)
	h.SetSequenceMode(mode)
	entries := util.FastaRead(in)

	w := cmd.OutOrStdout()
	if out != "" {
		f := util.CreateFile(out)
		defer f.Close()
		w = f
	}
	fmt.Fprintln(w, "id\t"+hmm.AlignmentTSVHeader)

	var bar *pb.ProgressBar
	if len(entries) >= progressThreshold {
		bar = pb.StartNew(len(entries))
	}
	for _, entry := range entries {
		if bar != nil {
			bar.Increment()
		}
		query, err := seq.NewPrimarySeq(entry.Header, entry.Sequence, h.Abc())
		if util.Warning(err, "Skipping '%s'", entry.Header) {
			continue
		}
		vs := hmm.NewViterbiScores(h, query.Length())
		h.CalcViterbiScores(query, vs)

		var vt hmm.ViterbiAlignTrace
		h.BuildViterbiTrace(vs, &vt)
		if !vt.Valid() {
			util.Warnf("No alignment found for '%s'.", entry.Header)
			continue
		}
		aln := h.BuildGlobalAlign(query, vs, &vt)
		fmt.Fprintf(w, "%s\t%s\n", entry.Header, aln.TSV())
	}
	if bar != nil {
		bar.Finish()
	}
}
