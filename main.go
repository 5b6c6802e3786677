// redapid exposes the RED Brick's filesystem, processes and persisted
// programs as remotely addressable objects over a framed binary protocol
// consumed by brickd.
//
// Run with --daemon for normal operation; see --help for the rest of the
// inspection verbs.
package main

import (
	"fmt"
	"os"

	"redapid/cmd"
)

func main() {
	cmd.RunHelperIfReexeced()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "redapid:", err)
		os.Exit(1)
	}
}
