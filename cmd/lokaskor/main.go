// Command lokaskor is the engine CLI: serve and version subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/lokaskor/lokaskor/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
