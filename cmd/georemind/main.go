// Command georemind runs the location-aware reminder engine and manages its
// reminder database.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/georemind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
