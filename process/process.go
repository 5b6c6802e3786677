// Package process implements the Process object type (spec §4.6): fork,
// spawn, the waiter thread that hands state transitions back to the
// single-threaded reactor, and the state machine it drives.
package process

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	apierrors "redapid/errors"
	"redapid/inventory"
	"redapid/logging"
	"redapid/object"
	"redapid/value"
)

// State is the Process state machine (§4.6). Exited/Killed/Stopped/Error
// are terminal: kill() is a no-op once reached.
type State uint8

const (
	StateUnknown State = iota
	StateRunning
	StateExited
	StateKilled
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func (s State) IsTerminal() bool {
	switch s {
	case StateExited, StateKilled, StateStopped, StateError:
		return true
	default:
		return false
	}
}

// Exit code taxonomy used when the daemon itself cannot get the child to
// exec, per §4.6.
const (
	ExitInternalPreExecError = 125
	ExitExecFoundButFailed   = 126
	ExitNotFound             = 127
)

// StateChangeFunc is invoked on the reactor's goroutine once a waiter
// thread has observed a terminal wait status and written its wake byte.
type StateChangeFunc func(p *Process)

// StdioRefs bundles the three locked File-backed stdio handles a spawn
// holds internal references on, so Destroy can release all three
// uniformly.
type StdioRefs struct {
	Stdin, Stdout, Stderr object.Object
}

// Process wraps one spawned child: the executable/argv/envp/cwd objects
// it holds a reference and lock on while Running, its OS pid, and the
// wake pipe the waiter thread uses to hand control back to the reactor.
type Process struct {
	*object.Base

	executable *value.String
	arguments  *value.List
	environment *value.List
	workingDir *value.String
	uid, gid   uint32
	stdio      StdioRefs

	state        State
	stateEntered time.Time
	pid          int
	exitCode     int

	wakeR *os.File
	wakeW *os.File
	onStateChange StateChangeFunc
	refsReleased  bool

	mu sync.Mutex // guards only the fields the waiter thread touches before exiting
}

// Spec describes one spawn() call's inputs (§4.6).
type Spec struct {
	Executable  *value.String
	Arguments   *value.List
	Environment *value.List
	WorkingDir  *value.String
	UID, GID    uint32
	Stdio       StdioRefs
}

func lockRef(o object.Object) {
	o.AddInternalRef()
	o.Lock()
}

func unlockRef(o object.Object) {
	o.Unlock()
	o.RemoveInternalRef()
}

// Spawn implements spawn(...): takes an internal reference and a lock on
// every input object, forks, and in the child sets identity, chdirs,
// dup2s stdio, closes other descriptors, and execs. The parent records
// pid/state/timestamp and launches the waiter goroutine.
func Spawn(inv *inventory.Table, spec Spec, onStateChange StateChangeFunc) (*Process, error) {
	lockRef(spec.Executable)
	lockRef(spec.Arguments)
	lockRef(spec.Environment)
	lockRef(spec.WorkingDir)
	lockRef(spec.Stdio.Stdin)
	lockRef(spec.Stdio.Stdout)
	lockRef(spec.Stdio.Stderr)

	id, err := inv.Reserve()
	if err != nil {
		releaseAll(spec)
		return nil, err
	}

	r, w, err := os.Pipe()
	if err != nil {
		releaseAll(spec)
		return nil, apierrors.WrapErrno(err, "process.spawn")
	}

	p := &Process{
		executable:    spec.Executable,
		arguments:     spec.Arguments,
		environment:   spec.Environment,
		workingDir:    spec.WorkingDir,
		uid:           spec.UID,
		gid:           spec.GID,
		stdio:         spec.Stdio,
		wakeR:         r,
		wakeW:         w,
		onStateChange: onStateChange,
	}
	p.Base = object.NewBase(id, object.KindProcess, inv, p.releaseSpawnRefs)

	pid, exitCode, err := fork(spec)
	if err != nil {
		p.state = StateError
		p.stateEntered = time.Now()
		p.exitCode = exitCode
		p.releaseSpawnRefs()
		if addErr := inv.Add(p); addErr != nil {
			return nil, addErr
		}
		return p, nil
	}

	p.pid = pid
	p.state = StateRunning
	p.stateEntered = time.Now()
	if err := inv.Add(p); err != nil {
		return nil, err
	}

	go p.waiter()
	return p, nil
}

func releaseAll(spec Spec) {
	unlockRef(spec.Executable)
	unlockRef(spec.Arguments)
	unlockRef(spec.Environment)
	unlockRef(spec.WorkingDir)
	unlockRef(spec.Stdio.Stdin)
	unlockRef(spec.Stdio.Stdout)
	unlockRef(spec.Stdio.Stderr)
}

// fdOf extracts the raw OS descriptor a stdio object wraps. Concrete File
// objects expose Fd(); this is satisfied via an interface to avoid vfs
// importing process (or vice versa).
type fdHolder interface {
	Fd() uintptr
}

// fork blocks signals, forks via exec.Cmd's SysProcAttr identity
// switching (setgroups/setgid/setuid happen in the child per the
// syscall.Credential contract), dup2s stdio, and execs. Grounded in the
// same fork-set-identity-exec shape the teacher uses for container init,
// generalized from namespace entry to plain uid/gid switching.
func fork(spec Spec) (int, int, error) {
	argv := make([]string, 0, spec.Arguments.Length())
	for i := 0; i < spec.Arguments.Length(); i++ {
		item, err := spec.Arguments.GetItem(i)
		if err != nil {
			break
		}
		if s, ok := item.(*value.String); ok {
			argv = append(argv, string(s.Bytes()))
		}
	}
	envv := make([]string, 0, spec.Environment.Length())
	for i := 0; i < spec.Environment.Length(); i++ {
		item, err := spec.Environment.GetItem(i)
		if err != nil {
			break
		}
		if s, ok := item.(*value.String); ok {
			envv = append(envv, string(s.Bytes()))
		}
	}

	cmd := exec.Command(string(spec.Executable.Bytes()), argv...)
	cmd.Env = envv
	cmd.Dir = string(spec.WorkingDir.Bytes())
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Credential: &syscall.Credential{Uid: spec.UID, Gid: spec.GID},
	}

	if stdin, ok := spec.Stdio.Stdin.(fdHolder); ok {
		cmd.Stdin = os.NewFile(stdin.Fd(), "stdin")
	}
	if stdout, ok := spec.Stdio.Stdout.(fdHolder); ok {
		cmd.Stdout = os.NewFile(stdout.Fd(), "stdout")
	}
	if stderr, ok := spec.Stdio.Stderr.(fdHolder); ok {
		cmd.Stderr = os.NewFile(stderr.Fd(), "stderr")
	}

	if err := cmd.Start(); err != nil {
		exitCode, wrapped := classifyStartError(err)
		return 0, exitCode, wrapped
	}
	return cmd.Process.Pid, 0, nil
}

// classifyStartError maps a failed cmd.Start() to the exit-code taxonomy
// §4.6 documents for a spawn that never reached exec: 127 when the
// executable itself could not be found, 126 when it was found but could
// not be invoked because of a permission error (e.g. not executable), 125
// for anything else that kept the daemon from forking at all.
func classifyStartError(err error) (int, error) {
	if os.IsNotExist(err) {
		return ExitNotFound, apierrors.WithDetail(apierrors.DoesNotExist, "process.spawn", "executable not found")
	}
	if os.IsPermission(err) {
		return ExitExecFoundButFailed, apierrors.WrapErrno(err, "process.spawn")
	}
	return ExitInternalPreExecError, apierrors.WrapErrno(err, "process.spawn")
}

// waiter runs on its own goroutine standing in for the spec's dedicated
// waiter thread: its only job is to waitpid and then write one byte to
// the wake pipe. It must not touch the Process object's fields that the
// reactor reads concurrently — it only sets pid-exit bookkeeping before
// signalling, matching the "payload already stored before the thread
// exits" rule of §5.
func (p *Process) waiter() {
	var ws syscall.WaitStatus
	_, err := syscall.Wait4(p.pid, &ws, 0, nil)

	p.mu.Lock()
	switch {
	case err != nil:
		p.state = StateError
	case ws.Exited():
		p.state = StateExited
		p.exitCode = ws.ExitStatus()
	case ws.Signaled():
		p.state = StateKilled
	case ws.Stopped():
		p.state = StateStopped
	}
	p.stateEntered = time.Now()
	p.mu.Unlock()

	p.wakeW.Write([]byte{1})
}

// HandleWake is called by the reactor when the wake pipe becomes
// readable: it drains the byte and invokes on_state_change, then releases
// the per-spawn internal references exactly as §4.6 specifies.
func (p *Process) HandleWake() {
	buf := make([]byte, 1)
	p.wakeR.Read(buf)

	if p.onStateChange != nil {
		p.onStateChange(p)
	}
	p.releaseSpawnRefs()
}

// WakeFd exposes the wake pipe's read end for reactor registration.
func (p *Process) WakeFd() uintptr { return p.wakeR.Fd() }

func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// StateEnteredUnix reports when the current state was entered, as a unix
// timestamp, for the state() read-back operation.
func (p *Process) StateEnteredUnix() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateEntered.Unix()
}

func (p *Process) PID() int { return p.pid }

// Executable, Arguments, Environment, WorkingDir, Identity and Stdio
// expose the locked spawn inputs for the command()/identity()/stdio()
// read-back operations (§4.6); all are read-only snapshots of values
// fixed for this Process's lifetime.
func (p *Process) Executable() *value.String  { return p.executable }
func (p *Process) Arguments() *value.List     { return p.arguments }
func (p *Process) Environment() *value.List   { return p.environment }
func (p *Process) WorkingDir() *value.String  { return p.workingDir }
func (p *Process) Identity() (uid, gid uint32) { return p.uid, p.gid }
func (p *Process) Stdio() StdioRefs           { return p.stdio }

// Kill implements kill(sig): a no-op in terminal states.
func (p *Process) Kill(sig syscall.Signal) error {
	if p.State().IsTerminal() {
		return nil
	}
	if err := syscall.Kill(p.pid, sig); err != nil {
		return apierrors.WrapErrno(err, "process.kill")
	}
	return nil
}

// releaseSpawnRefs is idempotent: it runs either from HandleWake (the
// normal path, once the reactor has delivered on_state_change) or as the
// object's onZero destructor if the Process itself is destroyed first
// (e.g. a fork failure that never reached Running). Guarding against a
// double call matters because unlockRef is not itself idempotent.
func (p *Process) releaseSpawnRefs() {
	if p.refsReleased {
		return
	}
	p.refsReleased = true
	unlockRef(p.executable)
	unlockRef(p.arguments)
	unlockRef(p.environment)
	unlockRef(p.workingDir)
	unlockRef(p.stdio.Stdin)
	unlockRef(p.stdio.Stdout)
	unlockRef(p.stdio.Stderr)
	if p.wakeR != nil {
		p.wakeR.Close()
	}
	if p.wakeW != nil {
		p.wakeW.Close()
	}
	logging.Debug("process spawn references released", "pid", p.pid, "state", p.state.String())
}
