// Command glens explores temporal graphs: filter by time, type and search,
// highlight neighbourhoods and render snapshots.
package main

import (
	"os"

	"github.com/vanderheijden86/graphlens/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
