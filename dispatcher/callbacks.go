package dispatcher

import (
	apierrors "redapid/errors"
	"redapid/process"
	"redapid/program"
	"redapid/vfs"
	"redapid/wire"
)

// watchProcess registers a freshly spawned Process's wake pipe with the
// reactor so its terminal state transition is observed and its callback
// delivered. It is the watch hook program.NewDefaultSpawner and
// handleProcessSpawn both call after a successful process.Spawn.
func (d *Dispatcher) watchProcess(p *process.Process) {
	if d.react != nil {
		d.react.WatchProcess(p)
	}
}

// emit delivers an unsolicited callback frame to whatever peer is
// currently connected, a no-op if the reactor has not been attached
// (e.g. under test) or no peer is connected.
func (d *Dispatcher) emit(functionID uint8, payload []byte) {
	if d.srv == nil {
		return
	}
	d.srv.Deliver(wire.Callback(d.uid, functionID, payload))
}

// onProcessStateChange is the process.StateChangeFunc given to a
// directly-spawned Process (process.spawn, §4.6): it encodes and emits
// the process state-change callback the peer's own reference to this
// Process entitles it to.
func (d *Dispatcher) onProcessStateChange(p *process.Process) {
	payload := make([]byte, 2+1+4+4+4)
	putUint16(payload, 0, p.ID())
	payload[2] = uint8(p.State())
	putUint32(payload, 3, uint32(p.ExitCode()))
	ts := p.StateEnteredUnix()
	putUint32(payload, 7, uint32(ts))
	putUint32(payload, 11, uint32(ts>>32))
	d.emit(FuncProcessStateChangeCallback, payload)
}

// watchFileAsyncRead registers a File's async-read wake pipe with the
// reactor right after StartAsyncRead, the file equivalent of
// watchProcess.
func (d *Dispatcher) watchFileAsyncRead(f *vfs.File) {
	if d.react != nil {
		d.react.WatchFileAsyncRead(f)
	}
}

// onFileAsyncReadChunk is the AsyncReadFunc File.DrainAsyncRead invokes
// for each chunk read_async produces: it encodes the
// AsyncFileReadCallback payload (file_id, error_code, up to
// AsyncReadChunkSize data bytes, length_read) and emits it. error_code
// here is the full byte the ground-truth wire struct carries, not the
// header's 4-bit nibble — callback frames carry no header-level error
// (wire.Callback always sets it to Success), so a non-Success outcome
// has nowhere to live except this payload field.
func (d *Dispatcher) onFileAsyncReadChunk(f *vfs.File, data []byte, code apierrors.Code) {
	payload := make([]byte, 2+1+vfs.AsyncReadChunkSize+1)
	putUint16(payload, 0, f.ID())
	payload[2] = uint8(code)
	copy(payload[3:], data)
	payload[3+vfs.AsyncReadChunkSize] = uint8(len(data))
	d.emit(FuncFileAsyncReadCallback, payload)
}

// onFileAsyncWriteDone encodes and emits the AsyncFileWriteCallback for
// a completed write_async: file_id, error_code, length_written.
func (d *Dispatcher) onFileAsyncWriteDone(f *vfs.File, n int, code apierrors.Code) {
	payload := make([]byte, 2+1+1)
	putUint16(payload, 0, f.ID())
	payload[2] = uint8(code)
	payload[3] = uint8(n)
	d.emit(FuncFileAsyncWriteCallback, payload)
}

// attachProgramCallbacks wires a Program's scheduler-state and
// process-spawned notifications (§6's two program callbacks) to wire
// emission; called by handleProgramDefine right after program.New.
func (d *Dispatcher) attachProgramCallbacks(p *program.Program) {
	p.OnSchedulerStateChange = func(pr *program.Program) {
		payload := make([]byte, 2+1)
		putUint16(payload, 0, pr.ID())
		payload[2] = uint8(pr.State())
		d.emit(FuncProgramSchedulerStateCallback, payload)
	}
	p.OnProcessSpawned = func(pr *program.Program, proc *process.Process) {
		// watchProcess is already called for every scheduler-triggered
		// spawn by the Spawner's watch hook (program.NewDefaultSpawner);
		// this hook only needs to emit the callback frame.
		payload := make([]byte, 2+2)
		putUint16(payload, 0, pr.ID())
		putUint16(payload, 2, proc.ID())
		d.emit(FuncProgramProcessSpawnedCallback, payload)
	}
}
