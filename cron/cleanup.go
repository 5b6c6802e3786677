package cron

import (
	"os"
	"path/filepath"
	"strings"

	"redapid/logging"
)

// FilePrefix names every generated cron.d entry; program.CronFilePath
// appends the numeric program id to it (§6; original_source confirms the
// suffix is the id, not the identifier string).
const FilePrefix = "redapid-schedule-program-"

// Dir is the default directory generated cron entries live in.
const Dir = "/etc/cron.d"

// CleanupFiles removes every generated entry under dir, per §6: "the core
// deletes all such files at startup and at shutdown". A missing dir is
// not an error: a host without cron installed simply never schedules
// Cron-mode programs.
func CleanupFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			logging.Debug("could not remove cron file", "path", path, "error", err)
		}
	}
	return nil
}
