// redapid-acl is the standalone ACL helper: a tiny command that grants a
// user access to a directory by adding a POSIX ACL entry. It is run by
// external tooling; the daemon itself does not invoke it.
package main

import (
	"fmt"
	"os"

	"redapid/acl"
)

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <directory> <user> <rwx>\n", os.Args[0])
		os.Exit(2)
	}

	directory, username, permissions := os.Args[1], os.Args[2], os.Args[3]
	if err := acl.AddUser(directory, username, permissions); err != nil {
		fmt.Fprintln(os.Stderr, "redapid-acl:", err)
		os.Exit(1)
	}
}
