// This file starts the xlocsetd daemon.
package main

import (
	"fmt"
	"os"
)

// NOTE: set by ldflags at build time.
var (
	version string
	build   string
)

func main() {
	if err := newApp(version, build).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
