// Command framegraph compiles, validates and runs render frame graph
// descriptions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/framegraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "framegraph:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
