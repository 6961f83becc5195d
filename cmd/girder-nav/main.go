// Command girder-nav is the CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/girdertools/girder-nav/internal/cli"
	"github.com/girdertools/girder-nav/internal/version"
)

func main() {
	cli.Version = version.Version
	cli.BuildTime = version.BuildTime

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
