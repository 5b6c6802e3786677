package cmd

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// acquirePIDFile opens path, takes an exclusive advisory lock on it (so a
// second daemon instance fails fast instead of silently racing the first
// one for the listening sockets) and writes the current pid, mirroring
// pid_file_acquire()'s contract in the original daemon. The returned file
// must be kept open for the life of the process; closing it (or process
// exit) releases the lock.
func acquirePIDFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("already running according to %s", path)
		}
		return nil, fmt.Errorf("lock pid file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return f, nil
}
