package program

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"redapid/cron"
	apierrors "redapid/errors"
	"redapid/inventory"
	"redapid/logging"
	"redapid/object"
	"redapid/process"
	"redapid/value"
)

// restartBackoff is the fixed delay before Always-mode reschedules a spawn
// after its process exits, avoiding a tight fork loop on a program that
// exits instantly (§4.7's Open Question: kept as a named constant rather
// than a magic number).
const restartBackoff = 1 * time.Second

// ObserverGate is the lxpanel-wait sub-state used when the environment
// requests DISPLAY= on an X11-enabled host (§4.7 step 5).
type ObserverGate uint8

const (
	ObserverPending ObserverGate = iota
	ObserverWaiting
	ObserverFinished
)

// ObserverDeadline is the fixed wait for the lxpanel process observer.
const ObserverDeadline = 30 * time.Second

// State is the scheduler's top-level state (§4.7).
type State uint8

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Spawner builds and launches the process a program's scheduler should
// run, given the current config; it is supplied by the composition root
// (cmd/daemon.go) because only it holds the inventory.Table and the
// resolved stdio Files a spawn needs.
type Spawner func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error)

// Program is the Program object (§3/§4.7/§4.8): identifier, root
// directory, config, and scheduler state.
type Program struct {
	*object.Base

	identifier *value.String
	rootDir    string
	config     *Config

	state            State
	observer         ObserverGate
	waitingForBrickd bool
	lastError        *value.String
	lastSpawned      *process.Process

	continueAfterError bool

	intervalTimer  *time.Timer
	restartTimer   *time.Timer
	shuttingDown   bool

	lockedPathStrings []*value.String

	spawner   Spawner
	undefined bool
	poster    Poster

	// OnSchedulerStateChange and OnProcessSpawned surface the two
	// program callbacks named in §6; left nil until the composition root
	// wires the dispatcher's wire-emission hooks onto a freshly defined
	// Program.
	OnSchedulerStateChange func(*Program)
	OnProcessSpawned       func(*Program, *process.Process)
}

// Poster hands a job back to the single-threaded reactor loop from
// another goroutine, the same cross-thread discipline process.Process's
// wake pipe and session.Session's expiry timer already use (§5). A
// Program's own interval/restart timers fire on their own goroutine
// (stdlib time.AfterFunc); they must not touch Program fields directly,
// so they route through a Poster instead.
type Poster interface {
	Post(job func())
}

// inlinePoster runs a job synchronously on the calling goroutine; it is
// the default for a Program built without a reactor attached (tests,
// and any Program constructed before AttachReactor wires the real one).
type inlinePoster struct{}

func (inlinePoster) Post(job func()) { job() }

// New constructs a Program for identifier under home (<home>/programs/<id>).
func New(inv *inventory.Table, home string, identifier *value.String, cfg *Config, spawner Spawner) (*Program, error) {
	id, err := inv.Reserve()
	if err != nil {
		return nil, err
	}
	p := &Program{
		identifier: identifier,
		rootDir:    filepath.Join(home, "programs", string(identifier.Bytes())),
		config:     cfg,
		state:      StateStopped,
		observer:   ObserverPending,
		spawner:    spawner,
		poster:     inlinePoster{},
	}
	p.Base = object.NewBase(id, object.KindProgram, inv, p.destroy)
	if err := inv.Add(p); err != nil {
		return nil, err
	}
	identifier.AddInternalRef()
	identifier.Lock()
	return p, nil
}

func (p *Program) Identifier() string            { return string(p.identifier.Bytes()) }
func (p *Program) IdentifierString() *value.String { return p.identifier }
func (p *Program) RootDir() string                { return p.rootDir }
func (p *Program) Config() *Config                { return p.config }
func (p *Program) State() State                   { return p.state }
func (p *Program) LastSpawned() *process.Process  { return p.lastSpawned }
func (p *Program) LastSchedulerError() *value.String { return p.lastError }

// SetConfig replaces the in-memory Config and persists it, used by the
// command()/stdio_redirection()/schedule()/custom_options() setters
// (§4.7/§4.8). The caller is responsible for re-evaluating the scheduler
// via Update afterwards if the start mode changed.
func (p *Program) SetConfig(cfg *Config) error {
	if err := SaveConfig(filepath.Join(p.rootDir, "program.conf"), cfg); err != nil {
		return err
	}
	p.config = cfg
	return nil
}

// Undefine marks the program for deletion: its on-disk directory is
// removed once the object itself is destroyed (its last reference
// dropped), mirroring define()/undefine() being refcount-gated like every
// other object (§4.7).
func (p *Program) Undefine() {
	p.undefined = true
}

// SetPoster installs the reactor as this Program's job poster, called by
// the composition root right after program.New. Until then, timer
// callbacks run inline (inlinePoster), which is what every scheduler test
// in this package relies on.
func (p *Program) SetPoster(poster Poster) {
	if poster == nil {
		poster = inlinePoster{}
	}
	p.poster = poster
}

// Update is the single entry point from config changes and transport
// events (§4.7's update(try_start) steps 1-6).
func (p *Program) Update(tryStart bool, peerConnected bool, x11Enabled bool) error {
	if p.shuttingDown {
		return nil
	}
	if peerConnected {
		p.waitingForBrickd = false
	}

	if err := p.prepareFilesystem(); err != nil {
		return err
	}

	if !tryStart || p.config.StartMode == StartModeNever {
		p.stop()
		return nil
	}

	if x11Enabled && p.wantsDisplay() && p.observer != ObserverFinished {
		p.observer = ObserverWaiting
		return nil
	}

	return p.start()
}

// ObserverFinish resumes step 6 after the lxpanel observer completes or
// times out (§4.7 step 5's "resume step 6 on observer finish").
func (p *Program) ObserverFinish(tryStart, peerConnected bool) error {
	p.observer = ObserverFinished
	return p.Update(tryStart, peerConnected, false)
}

func (p *Program) wantsDisplay() bool {
	for _, e := range p.config.Environment {
		if len(e) >= 8 && e[:8] == "DISPLAY=" {
			return true
		}
	}
	return false
}

// prepareFilesystem creates the working directory and, for each
// File-redirected stream, its parent directory, with mode 0755. The
// directories are owned by the daemon's own uid/gid; no chown is done.
// It releases any Strings left in lockedPathStrings but assembles and
// locks no new path Strings.
func (p *Program) prepareFilesystem() error {
	for _, s := range p.lockedPathStrings {
		s.Unlock()
		s.RemoveInternalRef()
	}
	p.lockedPathStrings = nil

	if err := os.MkdirAll(p.config.WorkingDirectory, 0755); err != nil {
		return apierrors.WrapErrno(err, "program.update")
	}
	for _, redir := range []StdioRedirection{p.config.Stdin, p.config.Stdout, p.config.Stderr} {
		if redir.Mode != StdioFile || redir.FileName == "" {
			continue
		}
		abs := redir.FileName
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(p.rootDir, "bin", abs)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return apierrors.WrapErrno(err, "program.update")
		}
	}
	return nil
}

func (p *Program) stop() {
	p.stopTimers()
	p.setState(StateStopped)
}

// setState records a scheduler state transition and fires the
// scheduler-state callback (§6) when a notification sink is attached.
func (p *Program) setState(s State) {
	if p.state == s {
		return
	}
	p.state = s
	if p.OnSchedulerStateChange != nil {
		p.OnSchedulerStateChange(p)
	}
}

// start switches to Running and acts per start mode (§4.7 step 6).
func (p *Program) start() error {
	p.setState(StateRunning)
	switch p.config.StartMode {
	case StartModeNever:
		p.stop()
	case StartModeAlways:
		return p.spawnNow()
	case StartModeInterval:
		p.startIntervalTimer()
	case StartModeCron:
		return p.registerCron()
	}
	return nil
}

func (p *Program) spawnNow() error {
	proc, err := p.spawner(p.config, p.onProcessStateChange)
	if err != nil {
		p.enterError(err)
		return err
	}
	p.lastSpawned = proc
	if p.OnProcessSpawned != nil {
		p.OnProcessSpawned(p, proc)
	}
	return nil
}

func (p *Program) onProcessStateChange(proc *process.Process) {
	if p.config.StartMode == StartModeAlways {
		cleanExit := proc.State() == process.StateExited && proc.ExitCode() == 0
		if cleanExit || p.continueAfterError {
			p.restartTimer = time.AfterFunc(restartBackoff, func() {
				p.poster.Post(func() { p.spawnNow() })
			})
		}
	}
	logging.Debug("program process state changed", "program_id", p.Identifier(), "state", proc.State().String())
}

func (p *Program) startIntervalTimer() {
	p.stopIntervalTimer()
	interval := time.Duration(p.config.RepeatInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	p.intervalTimer = time.AfterFunc(interval, func() {
		p.poster.Post(p.onIntervalTick)
	})
}

func (p *Program) onIntervalTick() {
	if p.lastSpawned == nil || p.lastSpawned.State().IsTerminal() {
		p.spawnNow()
	}
	p.startIntervalTimer()
}

func (p *Program) stopIntervalTimer() {
	if p.intervalTimer != nil {
		p.intervalTimer.Stop()
		p.intervalTimer = nil
	}
}

func (p *Program) stopTimers() {
	p.stopIntervalTimer()
	if p.restartTimer != nil {
		p.restartTimer.Stop()
		p.restartTimer = nil
	}
}

// registerCron writes the generated cron entry keyed by program id (§6;
// original_source confirms the file suffix is the numeric program id, not
// the identifier string).
func (p *Program) registerCron() error {
	path := CronFilePath(p.ID())
	line := fmt.Sprintf("%s %s %s %s %s root %s --cron-wake %d\n",
		cronField(p.config.Cron.Minute, 60),
		cronField(uint64(p.config.Cron.Hour), 24),
		cronField(uint64(p.config.Cron.Day), 31),
		cronField(uint64(p.config.Cron.Month), 12),
		cronField(uint64(p.config.Cron.Weekday), 7),
		os.Args[0], p.ID())
	if err := os.WriteFile(path, []byte(line), 0644); err != nil {
		return apierrors.WrapErrno(err, "program.update")
	}
	return nil
}

// CronFilePath names the generated cron.d entry for a program id, per
// §6's fixed prefix.
func CronFilePath(programID uint16) string {
	return filepath.Join(cron.Dir, fmt.Sprintf("%s%d", cron.FilePrefix, programID))
}

func cronField(mask uint64, width int) string {
	if mask == 0 {
		return "*"
	}
	s := ""
	for i := 0; i < width; i++ {
		if mask&(1<<uint(i)) != 0 {
			if s != "" {
				s += ","
			}
			s += fmt.Sprintf("%d", i)
		}
	}
	return s
}

// CronWake spawns once on a cron tick (Cron mode).
func (p *Program) CronWake() error {
	return p.spawnNow()
}

// enterError implements "on any scheduler error that is not a transient
// process failure, enter Stopped with a recorded message String"; the
// message itself is attached by the caller via SetLastSchedulerError,
// since building a stock String requires the inventory.Table this
// package doesn't hold a reference to.
func (p *Program) enterError(err error) {
	p.stop()
	logging.Error("program scheduler error", "program_id", p.Identifier(), "error", apierrors.CodeOf(err).String())
}

// SetLastSchedulerError records a stock-locked message String, replacing
// and releasing any previously recorded one.
func (p *Program) SetLastSchedulerError(s *value.String) {
	if p.lastError != nil {
		p.lastError.Unlock()
		p.lastError.RemoveInternalRef()
	}
	p.lastError = s
	if s != nil {
		s.AddInternalRef()
		s.Lock()
	}
}

// Shutdown stops timers, removes observers, and SIGKILLs any live
// spawned process (§4.7's shutdown clause).
func (p *Program) Shutdown() error {
	p.shuttingDown = true
	return p.haltScheduler()
}

func (p *Program) haltScheduler() error {
	p.stopTimers()
	p.observer = ObserverPending
	if p.lastSpawned != nil && !p.lastSpawned.State().IsTerminal() {
		return p.lastSpawned.Kill(syscall.SIGKILL)
	}
	return nil
}

// destroy is the object's onZero destructor, releasing the identifier
// lock/ref, any locked path Strings, and the recorded error String once
// the Program object itself is destroyed.
func (p *Program) destroy() {
	p.haltScheduler()
	for _, s := range p.lockedPathStrings {
		s.Unlock()
		s.RemoveInternalRef()
	}
	p.lockedPathStrings = nil
	p.identifier.Unlock()
	p.identifier.RemoveInternalRef()
	if p.lastError != nil {
		p.lastError.Unlock()
		p.lastError.RemoveInternalRef()
	}
	if p.undefined {
		os.RemoveAll(p.rootDir)
		os.Remove(CronFilePath(p.ID()))
	}
}
