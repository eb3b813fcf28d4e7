package main

import (
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/palc/HmmUFOtu/hmm"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "palc",
	Short:   "Banded profile-HMM alignment of DNA reads against a consensus frame",
	Version: "0.9.0",
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	cobra.OnInitialize(initConfig)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

// initConfig merges an optional palc.yaml from the working directory
// into the flag defaults.
func initConfig() {
	viper.SetConfigName("palc")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("palc")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("could not read config: %v", err)
		}
	}
}

// modeOf translates a flank-mode flag value.
func modeOf(name string) (hmm.AlignMode, bool) {
	switch strings.ToLower(name) {
	case "global":
		return hmm.ModeGlobal, true
	case "local":
		return hmm.ModeLocal, true
	case "ngcl":
		return hmm.ModeNGCL, true
	case "cgnl":
		return hmm.ModeCGNL, true
	}
	return hmm.ModeLocal, false
}
