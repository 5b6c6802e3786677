package cmd

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// paths bundles the daemon's well-known file locations, mirroring
// main.c's prepare_paths(): running as root uses the system locations
// under /etc, /var/run and /var/log; any other uid gets an equivalent
// layout under ~/.redapid so the daemon is runnable without root for
// development and the ACL helper's own tests.
type paths struct {
	ConfigFile  string
	PIDFile     string
	BrickdSock  string
	CronSock    string
	LogFile     string
	ProgramsDir string
}

func resolvePaths() (*paths, error) {
	if os.Getuid() == 0 {
		return &paths{
			ConfigFile:  "/etc/redapid.conf",
			PIDFile:     "/var/run/redapid.pid",
			BrickdSock:  "/var/run/redapid-brickd.socket",
			CronSock:    "/var/run/redapid-cron.socket",
			LogFile:     "/var/log/redapid.log",
			ProgramsDir: "/var/lib/redapid",
		}, nil
	}

	home := os.Getenv("HOME")
	if home == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determine home directory: %w", err)
		}
		home = u.HomeDir
	}

	dir := filepath.Join(home, ".redapid")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	return &paths{
		ConfigFile:  filepath.Join(dir, "redapid.conf"),
		PIDFile:     filepath.Join(dir, "redapid.pid"),
		BrickdSock:  filepath.Join(dir, "redapid-brickd.socket"),
		CronSock:    filepath.Join(dir, "redapid-cron.socket"),
		LogFile:     filepath.Join(dir, "redapid.log"),
		ProgramsDir: dir,
	}, nil
}
