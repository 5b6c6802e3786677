package cmd

import (
	"os"
	"strconv"
	"strings"
)

// redBrickUIDPath is where the RED Brick kernel module exposes the
// device's fixed Tinkerforge uid; identity.get (§C.1) reports it
// unchanged for the life of the daemon.
const redBrickUIDPath = "/proc/red_brick_uid"

// readRedBrickUID reads the device uid, defaulting to 0 when the kernel
// module isn't loaded (developing/testing off actual RED Brick hardware)
// rather than failing startup outright.
func readRedBrickUID() uint32 {
	data, err := os.ReadFile(redBrickUIDPath)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
