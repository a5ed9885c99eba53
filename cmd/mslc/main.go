// Command mslc compiles and runs MSL scripts from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/larkloop/msl/cmd/mslc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
