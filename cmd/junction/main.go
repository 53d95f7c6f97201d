package main

import (
	"fmt"
	"os"

	"github.com/junction-dev/junction-go/cmd/junction/commands"
	"github.com/junction-dev/junction-go/pkg/junction"
)

var (
	version = junction.Version
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := commands.NewRootCommand(commands.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
