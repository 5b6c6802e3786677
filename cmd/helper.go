package cmd

import (
	"os"

	"redapid/vfs"
)

// RunHelperIfReexeced checks for the identity-helper re-exec marker
// OpenAsIdentity sets before forking a copy of this binary (vfs.
// HelperReexecEnv) and, if present, runs the helper body and exits
// immediately — before cobra ever sees the process's argv, since the
// helper invocation carries no normal command-line flags, only fd 3 and
// the environment variable. main() calls this first, ahead of
// cmd.Execute().
func RunHelperIfReexeced() {
	if os.Getenv(vfs.HelperReexecEnv) == "" {
		return
	}
	os.Exit(vfs.HelperMain())
}
