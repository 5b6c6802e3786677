// Package config loads the daemon's own redapid.conf, distinct from the
// per-program program.conf the program package owns. The original C
// daemon's config_options.c lists exactly one option; this keeps that
// scope rather than inventing configuration surface the spec never asked
// for.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config is the daemon-wide configuration (redapid.conf's [general]
// section). LogLevel mirrors config_options.c's "log.level" symbol option
// (one of debug/info/warn/error; defaults to info).
type Config struct {
	LogLevel string

	// Warnings accumulates recognized-but-questionable settings (an
	// out-of-range log level, say); Check()/--check-config surfaces them
	// without treating them as load failures, same as the original
	// daemon's config_has_warning().
	Warnings []string
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load reads path, defaulting every field when the file does not exist —
// a missing redapid.conf is not an error, the daemon just runs with
// defaults, same as the original's config_init() behavior.
func Load(path string) (*Config, error) {
	cfg := &Config{LogLevel: "info"}

	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	sec := f.Section("general")
	if sec.HasKey("log.level") {
		level := sec.Key("log.level").String()
		if !validLevels[level] {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown log.level %q, using %q", level, cfg.LogLevel))
		} else {
			cfg.LogLevel = level
		}
	}

	return cfg, nil
}

// Check loads path purely to validate it, returning the same warnings
// Load would have collected; used by --check-config (§6 CLI), which
// never starts the daemon itself.
func Check(path string) (*Config, error) {
	return Load(path)
}
