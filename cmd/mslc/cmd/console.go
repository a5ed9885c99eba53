package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	msl "github.com/larkloop/msl"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start an interactive MSL console (scriptlet REPL)",
	Long: `console opens a line-at-a-time scriptlet session (spec §6 "CLI/REPL
surface"): each line you type is parsed as an extension of the prior
body, with earlier function and variable declarations carried forward,
then immediately requested for execution.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(_ *cobra.Command, _ []string) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fatalf("console requires an interactive terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fatalf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, "msl> ")

	logger := msl.NewLogger(verbose)
	shellCtx := newHeadlessContext(msl.ContextShell)
	kernelCtx := newHeadlessContext(msl.ContextKernel)
	env := msl.NewEnvironment(shellCtx, logger)
	env.Conductor().SetDiagnostics(true)
	console := msl.NewConsoleSession(env, "<console>")

	fmt.Fprintln(t, "MSL console. Ctrl-D to exit.")

	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			fmt.Fprintln(t, "\r\nbye")
			return nil
		}
		if err != nil {
			return fatalf("console read error: %w", err)
		}
		if line == "" {
			continue
		}
		evalLine(t, env, console, shellCtx, kernelCtx, line)
	}
}

func evalLine(t *term.Terminal, env *msl.Environment, console *msl.ConsoleSession, shellCtx, kernelCtx *headlessContext, line string) {
	unit, err := console.Eval(line)
	if err != nil {
		for _, e := range unit.Errors {
			fmt.Fprintf(t, "error: %d:%d: %s\r\n", e.Line, e.Column, e.Detail)
		}
		return
	}
	for _, w := range unit.Warnings {
		fmt.Fprintf(t, "warning: %d:%d: %s\r\n", w.Line, w.Column, w.Detail)
	}

	conductor := env.Conductor()
	conductor.PruneResults()

	linkage := &msl.Linkage{Name: unit.ID, Unit: unit, Function: unit.Body, IsFunction: true}
	env.Request(msl.ContextShell, &msl.Request{Linkage: linkage})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conductor.Advance(msl.ContextShell, shellCtx)
		conductor.Advance(msl.ContextKernel, kernelCtx)

		results := conductor.Results()
		if len(results) > 0 {
			r := results[0]
			if len(r.Errors) > 0 {
				for _, e := range r.Errors {
					fmt.Fprintf(t, "runtime error: %d:%d: %s\r\n", e.Line, e.Column, e.Detail)
				}
			} else if !r.Value.IsNull() {
				fmt.Fprintf(t, "%s\r\n", r.Value.String())
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	fmt.Fprintln(t, "(timed out waiting for result)\r")
}
