// Command haies is the hedge input command-line tool.
package main

import (
	"os"

	"github.com/MTES-MCT/envergo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
