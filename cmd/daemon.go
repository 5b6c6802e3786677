package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"redapid/config"
	"redapid/cron"
	"redapid/dispatcher"
	"redapid/inventory"
	"redapid/logging"
	"redapid/reactor"
	"redapid/session"
	"redapid/value"
)

// runDaemon implements --daemon: the composition root. Startup order is
// config, logging, pid file, SIGHUP handler, cron cleanup, event loop,
// inventory/sessions/dispatcher, sockets, program load, config watcher,
// run. On SIGINT/SIGTERM the loop stops, cron files are cleaned up again,
// and the deferred closes release sockets, event loop and pid file in
// reverse order.
func runDaemon(debug bool) error {
	paths, err := resolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	printWarnings(cfg.Warnings)

	level := logging.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	if debug {
		logging.SetDefault(logging.NewLogger(logging.Config{Level: level, Format: "text", Output: os.Stderr}))
	} else {
		if _, err := logging.NewLoggerToFile(logging.Config{Level: level, Format: "text"}, paths.LogFile); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}

	pidFile, err := acquirePIDFile(paths.PIDFile)
	if err != nil {
		return fmt.Errorf("acquire pid file: %w", err)
	}
	defer pidFile.Close()
	defer os.Remove(paths.PIDFile)

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			if err := logging.Reopen(paths.LogFile); err != nil {
				logging.Error("reopen log file on SIGHUP failed", "error", err)
			} else {
				logging.Info("reopened log file on SIGHUP")
			}
		}
	}()

	// cron_cleanup_files() runs both before and after the event loop: a
	// stale /etc/cron.d entry left by a daemon that crashed mid-schedule
	// must not survive into the next run, and none should be left behind
	// when this run exits cleanly either.
	if err := cron.CleanupFiles("/etc/cron.d"); err != nil {
		logging.Warn("cron cleanup at startup failed", "error", err)
	}

	react, err := reactor.New()
	if err != nil {
		return fmt.Errorf("init event loop: %w", err)
	}
	defer react.Close()

	inv := inventory.NewTable(value.NewStockString)
	sessions := session.NewManager()
	uid := readRedBrickUID()
	d := dispatcher.New(inv, sessions, uid, paths.ProgramsDir)

	srv, err := reactor.NewServer(react, paths.BrickdSock, paths.CronSock, d, d)
	if err != nil {
		return fmt.Errorf("init sockets: %w", err)
	}
	defer srv.Close()

	d.AttachReactor(react, srv)

	if err := d.LoadPrograms(); err != nil {
		logging.Warn("loading persisted programs reported errors", "error", err)
	}

	if err := d.StartConfigWatcher(); err != nil {
		logging.Warn("starting program.conf watcher failed", "error", err)
	}

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigterm
		logging.Info("shutting down")
		react.Stop()
	}()

	logging.Info("redapid started", "uid", uid, "brickd_socket", paths.BrickdSock, "cron_socket", paths.CronSock)
	runErr := react.Run()

	if err := cron.CleanupFiles("/etc/cron.d"); err != nil {
		logging.Warn("cron cleanup at shutdown failed", "error", err)
	}

	return runErr
}
