package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/palc/HmmUFOtu/cmd/util"
	"github.com/palc/HmmUFOtu/hmm"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Train a profile HMM from an aligned FASTA reference",
	Run:   runBuild,
}

func init() {
	buildCmd.Flags().StringP("in", "i", "", "aligned FASTA input file")
	buildCmd.Flags().StringP("out", "o", "", "profile HMM output file")
	buildCmd.Flags().StringP("name", "n", "", "profile name (default \"unnamed\")")
	buildCmd.Flags().Float64P("symfrac", "f", 0.5, "weighted residue fraction for a consensus column")
	buildCmd.Flags().BoolP("weighted", "w", true, "use position-based sequence weights")
	viper.BindPFlag("symfrac", buildCmd.Flags().Lookup("symfrac"))
	viper.BindPFlag("weighted", buildCmd.Flags().Lookup("weighted"))

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	name, _ := cmd.Flags().GetString("name")
	if in == "" || out == "" {
		util.Fatalf("build needs both --in and --out")
	}

	msa := util.MSARead(in, name)
	if viper.GetBool("weighted") {
		msa.SetPositionBasedWeights()
	}

	h, err := hmm.Build(msa, viper.GetFloat64("symfrac"), hmm.DefaultPrior(), name)
	util.Assert(err, "Could not train profile from '%s'", in)

	f := util.CreateFile(out)
	defer f.Close()
	util.Assert(hmm.Write(f, h), "Could not write profile '%s'", out)
}
