// Command strata manages multi-layer data models from the command line.
package main

import (
	"os"

	"github.com/mesh-intelligence/strata/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
