// Package main provides the CLI entrypoint for velotype.
package main

import (
	"fmt"
	"os"

	"github.com/velotype/velotype/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
