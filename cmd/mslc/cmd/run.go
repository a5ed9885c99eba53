package cmd

import (
	"fmt"
	"os"
	"time"

	msl "github.com/larkloop/msl"
	"github.com/spf13/cobra"
)

var (
	runDumpErrors bool
	runMaxTicks   int
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Compile, link, install, and run an MSL script to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runDumpErrors, "dump-errors", true, "print compile/link errors and warnings")
	runCmd.Flags().IntVar(&runMaxTicks, "max-ticks", 10000, "safety bound on Conductor.Advance ticks before giving up")
}

func runScript(_ *cobra.Command, args []string) error {
	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		return fatalf("read %s: %w", path, err)
	}

	logger := msl.NewLogger(verbose)
	shellCtx := newHeadlessContext(msl.ContextShell)
	env := msl.NewEnvironment(shellCtx, logger)

	unit := env.Compile(path, string(source))
	printDiagnostics(unit)
	if unit.HasErrors() {
		return fatalf("%s: %d compile error(s)", path, len(unit.Errors))
	}
	if !env.Install(unit) {
		return fatalf("%s: install failed", path)
	}

	kernelCtx := newHeadlessContext(msl.ContextKernel)

	linkage := &msl.Linkage{Name: unit.QualifiedName(unit.Name), Unit: unit, Function: unit.Body, IsFunction: true}
	env.Request(msl.ContextShell, &msl.Request{Linkage: linkage})

	conductor := env.Conductor()
	seen := make(map[int64]bool)
	for tick := 0; tick < runMaxTicks; tick++ {
		conductor.Maintain(8)
		conductor.Advance(msl.ContextShell, shellCtx)
		conductor.Advance(msl.ContextKernel, kernelCtx)

		for _, r := range conductor.Results() {
			if seen[r.SessionID] {
				continue
			}
			seen[r.SessionID] = true
			printResult(r)
			if r.State == msl.ProcessFinished || r.State == msl.ProcessError {
				return nil
			}
		}
		time.Sleep(time.Millisecond)
	}
	return fatalf("%s: did not complete within %d ticks", path, runMaxTicks)
}

func printDiagnostics(unit *msl.Compilation) {
	if !runDumpErrors {
		return
	}
	for _, e := range unit.Errors {
		fmt.Fprintf(os.Stderr, "error: %d:%d: %s\n", e.Line, e.Column, e.Detail)
	}
	for _, w := range unit.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %d:%d: %s\n", w.Line, w.Column, w.Detail)
	}
	for _, c := range unit.Collisions {
		fmt.Fprintf(os.Stderr, "collision: %s already published by %s\n", c.Name, c.WithUnitID)
	}
}

func printResult(r *msl.Result) {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			fmt.Fprintf(os.Stderr, "runtime error: %d:%d: %s\n", e.Line, e.Column, e.Detail)
		}
		return
	}
	fmt.Println(r.Value.String())
	for _, extra := range r.Results {
		fmt.Println(extra.String())
	}
}
