package dispatcher

import (
	"syscall"

	apierrors "redapid/errors"
	"redapid/object"
	"redapid/process"
	"redapid/value"
)

func (d *Dispatcher) registerProcess() {
	// spawn(session_id, executable_id, arguments_id, environment_id,
	// working_directory_id, uid, gid, stdin_id, stdout_id, stderr_id) -> process_id
	d.register(FuncProcessSpawn, "process.spawn", 2+2+2+2+2+4+4+2+2+2, handleProcessSpawn)
	// kill(process_id, signal)
	d.register(FuncProcessKill, "process.kill", 2+1, handleProcessKill)
	// command(process_id, session_id) -> (executable_id, arguments_id, environment_id, working_directory_id)
	d.register(FuncProcessCommand, "process.command", 2+2, handleProcessCommand)
	// identity(process_id) -> (pid, uid, gid)
	d.register(FuncProcessIdentity, "process.identity", 2, handleProcessIdentity)
	// stdio(process_id, session_id) -> (stdin_id, stdout_id, stderr_id)
	d.register(FuncProcessStdio, "process.stdio", 2+2, handleProcessStdio)
	// state(process_id) -> (state, exit_code, timestamp)
	d.register(FuncProcessState, "process.state", 2, handleProcessState)

	// The state-change callback is server-initiated (onProcessStateChange
	// emits it directly via d.emit); reserved here so a peer that sends
	// this id as a request gets NOT_SUPPORTED rather than INVALID_PARAMETER.
	d.registerDeferredEntry(FuncProcessStateChangeCallback, "process.state_change_callback")
}

func (d *Dispatcher) lookupProcess(payload []byte, off int) (*process.Process, apierrors.Code) {
	id := getUint16(payload, off)
	o, code := d.lookup(object.KindProcess, id)
	if code != apierrors.Success {
		return nil, code
	}
	p, ok := o.(*process.Process)
	if !ok {
		return nil, apierrors.InternalError
	}
	return p, apierrors.Success
}

func handleProcessSpawn(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}

	executable, code := d.lookupStringArg(payload, 2)
	if code != apierrors.Success {
		return nil, code
	}
	arguments, code := d.lookupListArg(payload, 4)
	if code != apierrors.Success {
		return nil, code
	}
	environment, code := d.lookupListArg(payload, 6)
	if code != apierrors.Success {
		return nil, code
	}
	workingDir, code := d.lookupStringArg(payload, 8)
	if code != apierrors.Success {
		return nil, code
	}
	uid := getUint32(payload, 10)
	gid := getUint32(payload, 14)
	stdin, code := d.lookupFileArg(payload, 18)
	if code != apierrors.Success {
		return nil, code
	}
	stdout, code := d.lookupFileArg(payload, 20)
	if code != apierrors.Success {
		return nil, code
	}
	stderr, code := d.lookupFileArg(payload, 22)
	if code != apierrors.Success {
		return nil, code
	}

	spec := process.Spec{
		Executable:  executable,
		Arguments:   arguments,
		Environment: environment,
		WorkingDir:  workingDir,
		UID:         uid,
		GID:         gid,
		Stdio: process.StdioRefs{
			Stdin:  stdin,
			Stdout: stdout,
			Stderr: stderr,
		},
	}
	p, err := process.Spawn(d.inv, spec, d.onProcessStateChange)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	d.watchProcess(p)
	if err := sess.Track(p); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, p.ID())
	return out, apierrors.Success
}

func (d *Dispatcher) lookupStringArg(payload []byte, off int) (*value.String, apierrors.Code) {
	o, code := d.lookup(object.KindString, getUint16(payload, off))
	if code != apierrors.Success {
		return nil, code
	}
	return asString(o)
}

func (d *Dispatcher) lookupListArg(payload []byte, off int) (*value.List, apierrors.Code) {
	o, code := d.lookup(object.KindList, getUint16(payload, off))
	if code != apierrors.Success {
		return nil, code
	}
	return asList(o)
}

func (d *Dispatcher) lookupFileArg(payload []byte, off int) (object.Object, apierrors.Code) {
	return d.lookup(object.KindFile, getUint16(payload, off))
}

func handleProcessKill(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProcess(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sig := syscall.Signal(payload[2])
	if err := p.Kill(sig); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleProcessCommand(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProcess(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sessionID := getUint16(payload, 2)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	for _, o := range []object.Object{p.Executable(), p.Arguments(), p.Environment(), p.WorkingDir()} {
		if err := sess.Track(o); err != nil {
			return nil, apierrors.CodeOf(err)
		}
	}
	out := make([]byte, 2*4)
	putUint16(out, 0, p.Executable().ID())
	putUint16(out, 2, p.Arguments().ID())
	putUint16(out, 4, p.Environment().ID())
	putUint16(out, 6, p.WorkingDir().ID())
	return out, apierrors.Success
}

func handleProcessIdentity(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProcess(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	uid, gid := p.Identity()
	out := make([]byte, 4+4+4)
	putUint32(out, 0, uint32(p.PID()))
	putUint32(out, 4, uid)
	putUint32(out, 8, gid)
	return out, apierrors.Success
}

func handleProcessStdio(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProcess(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sessionID := getUint16(payload, 2)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	stdio := p.Stdio()
	for _, o := range []object.Object{stdio.Stdin, stdio.Stdout, stdio.Stderr} {
		if err := sess.Track(o); err != nil {
			return nil, apierrors.CodeOf(err)
		}
	}
	out := make([]byte, 2*3)
	putUint16(out, 0, stdio.Stdin.ID())
	putUint16(out, 2, stdio.Stdout.ID())
	putUint16(out, 4, stdio.Stderr.ID())
	return out, apierrors.Success
}

func handleProcessState(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProcess(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	out := make([]byte, 1+4+8)
	out[0] = uint8(p.State())
	putUint32(out, 1, uint32(p.ExitCode()))
	ts := p.StateEnteredUnix()
	putUint32(out, 5, uint32(ts))
	putUint32(out, 9, uint32(ts>>32))
	return out, apierrors.Success
}
