package dispatcher

import (
	"os"

	apierrors "redapid/errors"
	"redapid/object"
	"redapid/program"
)

func (d *Dispatcher) registerProgram() {
	// define(session_id, identifier_id) -> program_id
	d.register(FuncProgramDefine, "program.define", 2+2, handleProgramDefine)
	// undefine(program_id)
	d.register(FuncProgramUndefine, "program.undefine", 2, handleProgramUndefine)
	// identifier(program_id, session_id) -> identifier_string_id
	d.register(FuncProgramIdentifier, "program.identifier", 2+2, handleProgramIdentifier)
	// directory(program_id, session_id) -> root_directory_string_id
	d.register(FuncProgramDirectory, "program.directory", 2+2, handleProgramDirectory)
	// command(program_id, session_id) -> (executable_id, arguments_id, environment_id, working_directory_id)
	d.register(FuncProgramCommand, "program.command", 2+2, handleProgramCommand)
	// stdio_redirection(program_id) -> (stdin_mode, stdout_mode, stderr_mode)
	d.register(FuncProgramStdioRedirection, "program.stdio_redirection", 2, handleProgramStdioRedirection)
	// schedule(program_id) -> (start_mode, repeat_interval, state)
	d.register(FuncProgramSchedule, "program.schedule", 2, handleProgramSchedule)
	// last_spawned(program_id) -> (process_id, timestamp)
	d.register(FuncProgramLastSpawned, "program.last_spawned", 2, handleProgramLastSpawned)
	// scheduler_error(program_id, session_id) -> message_string_id (0 if none)
	d.register(FuncProgramSchedulerError, "program.scheduler_error", 2+2, handleProgramSchedulerError)
	// custom_options(program_id, session_id, key_string_id) -> value_string_id (0 if unset)
	d.register(FuncProgramCustomOptions, "program.custom_options", 2+2+2, handleProgramCustomOptions)
	// custom_options_set(program_id, key_string_id, value_string_id)
	d.register(FuncProgramCustomOptionsSet, "program.custom_options_set", 2+2+2, handleProgramCustomOptionsSet)

	// The scheduler-state and process-spawned callbacks are
	// server-initiated (attachProgramCallbacks emits them directly);
	// reserved here so a peer sending either id as a request gets
	// NOT_SUPPORTED rather than INVALID_PARAMETER.
	d.registerDeferredEntry(FuncProgramSchedulerStateCallback, "program.scheduler_state_callback")
	d.registerDeferredEntry(FuncProgramProcessSpawnedCallback, "program.process_spawned_callback")
}

func (d *Dispatcher) lookupProgram(payload []byte, off int) (*program.Program, apierrors.Code) {
	id := getUint16(payload, off)
	o, code := d.lookup(object.KindProgram, id)
	if code != apierrors.Success {
		return nil, code
	}
	p, ok := o.(*program.Program)
	if !ok {
		return nil, apierrors.InternalError
	}
	return p, apierrors.Success
}

func handleProgramDefine(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	identifierID := getUint16(payload, 2)
	io, code := d.lookup(object.KindString, identifierID)
	if code != apierrors.Success {
		return nil, code
	}
	identifier, code := asString(io)
	if code != apierrors.Success {
		return nil, code
	}
	if err := program.ValidateIdentifier(string(identifier.Bytes())); err != nil {
		return nil, apierrors.CodeOf(err)
	}

	cfg := &program.Config{Version: program.ConfigVersion, CustomOptions: map[string]string{}}
	p, err := program.New(d.inv, d.home, identifier, cfg, d.spawner)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if err := os.MkdirAll(p.RootDir(), 0755); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if err := p.SetConfig(cfg); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	d.watchNewProgramDir(p.RootDir())
	d.attachProgramCallbacks(p)
	if d.react != nil {
		p.SetPoster(d.react)
	}
	if err := sess.Track(p); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, p.ID())
	return out, apierrors.Success
}

func handleProgramUndefine(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	p.Undefine()
	if err := p.Shutdown(); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func trackAndReturn(sess trackable, o object.Object) ([]byte, apierrors.Code) {
	if err := sess.Track(o); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, o.ID())
	return out, apierrors.Success
}

type trackable interface {
	Track(object.Object) error
}

func handleProgramIdentifier(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sess := d.sessions.Get(getUint16(payload, 2))
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	return trackAndReturn(sess, p.IdentifierString())
}

func handleProgramDirectory(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sess := d.sessions.Get(getUint16(payload, 2))
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	s, err := program.BuildString(d.inv, p.RootDir())
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return trackAndReturn(sess, s)
}

func handleProgramCommand(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sess := d.sessions.Get(getUint16(payload, 2))
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	cfg := p.Config()
	executable, err := program.BuildString(d.inv, cfg.Executable)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	workingDir, err := program.BuildString(d.inv, cfg.WorkingDirectory)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	arguments, err := program.BuildStringList(d.inv, cfg.Arguments)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	environment, err := program.BuildStringList(d.inv, cfg.Environment)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	for _, o := range []object.Object{executable, arguments, environment, workingDir} {
		if err := sess.Track(o); err != nil {
			return nil, apierrors.CodeOf(err)
		}
	}
	out := make([]byte, 2*4)
	putUint16(out, 0, executable.ID())
	putUint16(out, 2, arguments.ID())
	putUint16(out, 4, environment.ID())
	putUint16(out, 6, workingDir.ID())
	return out, apierrors.Success
}

func handleProgramStdioRedirection(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	cfg := p.Config()
	out := make([]byte, 3)
	out[0] = uint8(cfg.Stdin.Mode)
	out[1] = uint8(cfg.Stdout.Mode)
	out[2] = uint8(cfg.Stderr.Mode)
	return out, apierrors.Success
}

func handleProgramSchedule(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	cfg := p.Config()
	out := make([]byte, 1+8+1)
	out[0] = uint8(cfg.StartMode)
	putUint32(out, 1, uint32(cfg.RepeatInterval))
	putUint32(out, 5, uint32(cfg.RepeatInterval>>32))
	out[9] = uint8(p.State())
	return out, apierrors.Success
}

func handleProgramLastSpawned(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	out := make([]byte, 2+8)
	last := p.LastSpawned()
	if last == nil {
		return out, apierrors.Success
	}
	putUint16(out, 0, last.ID())
	ts := last.StateEnteredUnix()
	putUint32(out, 2, uint32(ts))
	putUint32(out, 6, uint32(ts>>32))
	return out, apierrors.Success
}

func handleProgramSchedulerError(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sess := d.sessions.Get(getUint16(payload, 2))
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	msg := p.LastSchedulerError()
	out := make([]byte, 2)
	if msg == nil {
		return out, apierrors.Success
	}
	return trackAndReturn(sess, msg)
}

func handleProgramCustomOptions(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sess := d.sessions.Get(getUint16(payload, 2))
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	keyID := getUint16(payload, 4)
	ko, code := d.lookup(object.KindString, keyID)
	if code != apierrors.Success {
		return nil, code
	}
	key, code := asString(ko)
	if code != apierrors.Success {
		return nil, code
	}
	value, ok := p.Config().CustomOptions[string(key.Bytes())]
	out := make([]byte, 2)
	if !ok {
		return out, apierrors.Success
	}
	s, err := program.BuildString(d.inv, value)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return trackAndReturn(sess, s)
}

// handleProgramCustomOptionsSet implements custom_options_set(program_id,
// key, value): the setter half of the custom-options pair, persisted via
// the same SetConfig path handleProgramDefine uses to write program.conf.
func handleProgramCustomOptionsSet(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	p, code := d.lookupProgram(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	keyID := getUint16(payload, 2)
	ko, code := d.lookup(object.KindString, keyID)
	if code != apierrors.Success {
		return nil, code
	}
	key, code := asString(ko)
	if code != apierrors.Success {
		return nil, code
	}
	valueID := getUint16(payload, 4)
	vo, code := d.lookup(object.KindString, valueID)
	if code != apierrors.Success {
		return nil, code
	}
	value, code := asString(vo)
	if code != apierrors.Success {
		return nil, code
	}

	cfg := p.Config()
	updated := *cfg
	updated.CustomOptions = make(map[string]string, len(cfg.CustomOptions)+1)
	for k, v := range cfg.CustomOptions {
		updated.CustomOptions[k] = v
	}
	updated.CustomOptions[string(key.Bytes())] = string(value.Bytes())
	if err := p.SetConfig(&updated); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}
