package cmd

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"redapid/config"
)

// runCheckConfig implements --check-config: parse the resolved config
// file, report any unknown-option warnings, and exit non-zero on a
// genuine parse failure. Mirrors the original daemon's -c / --check-config
// flag, which exists so a packaging script can validate redapid.conf
// before restarting the service.
func runCheckConfig() error {
	paths, err := resolvePaths()
	if err != nil {
		return err
	}

	cfg, err := config.Check(paths.ConfigFile)
	if err != nil {
		return err
	}

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	header := fmt.Sprintf("%s: log.level = %s", paths.ConfigFile, cfg.LogLevel)
	if len(header) > width {
		header = header[:width]
	}
	fmt.Println(header)
	printWarnings(cfg.Warnings)
	if len(cfg.Warnings) == 0 {
		fmt.Println("config ok")
	}
	return nil
}
