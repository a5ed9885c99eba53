// Package cmd implements the mslc command-line surface, following the
// root-command-with-subcommands shape of CWBudde-go-dws's
// cmd/dwscript/cmd (spec §6 "CLI/REPL surface").
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "mslc",
	Short: "MSL script compiler and runtime shell",
	Long: `mslc compiles and runs MSL (the looping-audio workstation's scripting
language) scripts outside of the host application.

It drives the same Parser/Linker/Evaluator/Conductor pipeline the host
uses, standing in for the looper engine with a headless Context so
scripts can be exercised and their wait/sustain/repeat behavior inspected
from a terminal.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func fatalf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
