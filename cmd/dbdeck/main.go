package main

import (
	"fmt"
	"os"

	"github.com/entl/dbdeck/internal/cli"
)

// Set via -ldflags at release time.
var (
	version = "dev"
	build   = "unknown"
)

func main() {
	if err := cli.Execute(version, build); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
