// Package cmd implements the redapid command-line surface: a single
// binary that is either the daemon itself (--daemon) or one of a few
// one-shot inspection verbs, plus the identity-switch re-exec helper
// entered through RunHelperIfReexeced before cobra ever sees argv.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags; it has no wire meaning of
// its own, it just answers --version the way the original binary did.
var Version = "0.1.0"

var (
	flagDaemon      bool
	flagCheckConfig bool
	flagDebug       bool
)

// rootCmd is deliberately a single flat command, not a verb tree: unlike
// the container-runtime CLI this module started from, redapid exposes no
// create/start/kill/exec subcommands of its own — every object lifecycle
// operation happens over the brickd wire protocol, not argv.
var rootCmd = &cobra.Command{
	Use:   "redapid",
	Short: "RED Brick API daemon",
	Long: `redapid exposes the RED Brick's filesystem, processes and
persisted programs as remotely addressable objects over a framed binary
protocol consumed by brickd.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case flagCheckConfig:
			return runCheckConfig()
		case flagDaemon:
			return runDaemon(flagDebug)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagDaemon, "daemon", false, "run as the redapid daemon (the normal mode of operation)")
	rootCmd.Flags().BoolVar(&flagCheckConfig, "check-config", false, "parse the config file, report any problems, and exit")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "log at debug level and stay attached to the controlling terminal")
}

// Execute runs the root command; main calls this after
// RunHelperIfReexeced has had a chance to intercept a re-exec.
func Execute() error {
	return rootCmd.Execute()
}

func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Println("warning:", w)
	}
}
