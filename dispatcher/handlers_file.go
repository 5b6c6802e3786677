package dispatcher

import (
	"os"

	apierrors "redapid/errors"
	"redapid/object"
	"redapid/vfs"
)

func (d *Dispatcher) registerFile() {
	// open(session_id, name_string_id, flags, permissions, uid, gid) -> file_id
	d.register(FuncFileOpen, "file.open", 2+2+4+4+4+4, handleFileOpen)
	// close(file_id, session_id)
	d.register(FuncFileClose, "file.close", 2+2, handleFileClose)
	// name(file_id, session_id) -> name_string_id (0 for anonymous pipes)
	d.register(FuncFileName, "file.name", 4, handleFileName)
	// read(file_id, length) -> up to ReadChunkSize bytes
	d.register(FuncFileRead, "file.read", 2+4, handleFileRead)
	// write(file_id, window) -> bytes_written
	d.register(FuncFileWrite, "file.write", 2+vfs.WriteChunkSize, handleFileWrite)
	d.register(FuncFileWriteUnchecked, "file.write_unchecked", 2+vfs.WriteChunkSize, handleFileWriteUnchecked)
	// set_position(file_id, offset, origin) -> new_offset
	d.register(FuncFileSetPosition, "file.set_position", 2+8+1, handleFileSetPosition)
	d.register(FuncFileGetPosition, "file.get_position", 2, handleFileGetPosition)
	// info(name_string_id, follow_symlink) -> Info fields
	d.register(FuncFileInfo, "file.info", 2+1, handleFileInfo)
	d.register(FuncFileSymlinkTarget, "file.symlink_target", 2+1, handleFileSymlinkTarget)

	// read_async(file_id, length_to_read): kicks off the pump goroutine
	// (vfs.File.StartAsyncRead) and registers its wake pipe with the
	// reactor; results arrive as a run of FuncFileAsyncReadCallback frames.
	d.register(FuncFileReadAsync, "file.read_async", 2+4, handleFileReadAsync)
	d.register(FuncFileAbortAsyncRead, "file.abort_async_read", 2, handleFileAbortAsyncRead)
	// write_async(file_id, buffer): the original performs the write inline
	// and calls back with the result immediately, so this needs no pump of
	// its own (file.c's file_write_async).
	d.register(FuncFileWriteAsync, "file.write_async", 2+vfs.WriteChunkSize, handleFileWriteAsync)

	// The two callbacks above are server-initiated, never peer-dispatched;
	// reserved so a peer sending either id gets NOT_SUPPORTED rather than
	// INVALID_PARAMETER.
	d.registerDeferredEntry(FuncFileAsyncReadCallback, "file.async_read_callback")
	d.registerDeferredEntry(FuncFileAsyncWriteCallback, "file.async_write_callback")
}

func handleFileOpen(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	nameID := getUint16(payload, 2)
	flags := vfs.Flags(getUint32(payload, 4))
	permissions := os.FileMode(getUint32(payload, 8))
	uid := getUint32(payload, 12)
	gid := getUint32(payload, 16)

	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	no, code := d.lookup(object.KindString, nameID)
	if code != apierrors.Success {
		return nil, code
	}
	name, code := asString(no)
	if code != apierrors.Success {
		return nil, code
	}
	f, err := vfs.Open(d.inv, name, flags, permissions, uid, gid)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if err := sess.Track(f); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, f.ID())
	return out, apierrors.Success
}

func (d *Dispatcher) lookupFile(payload []byte, off int) (*vfs.File, apierrors.Code) {
	id := getUint16(payload, off)
	o, code := d.lookup(object.KindFile, id)
	if code != apierrors.Success {
		return nil, code
	}
	f, ok := o.(*vfs.File)
	if !ok {
		return nil, apierrors.InternalError
	}
	return f, apierrors.Success
}

// handleFileClose releases the caller's own external reference, mirroring
// string/list release: closing is just release(o) for a File (§4.2's
// generic release, not a distinct primitive).
func handleFileClose(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	fileID := getUint16(payload, 0)
	sessionID := getUint16(payload, 2)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	if err := sess.Release(fileID); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleFileName(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sessionID := getUint16(payload, 2)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	name := f.Name()
	if name == nil {
		out := make([]byte, 2)
		return out, apierrors.Success
	}
	if err := sess.Track(name); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, name.ID())
	return out, apierrors.Success
}

func handleFileRead(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	length := int(getUint32(payload, 2))
	if length > vfs.ReadChunkSize {
		length = vfs.ReadChunkSize
	}
	data, err := f.Read(length)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, vfs.ReadChunkSize)
	copy(out, data)
	return out, apierrors.Success
}

func handleFileWrite(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	return fileWrite(d, payload)
}

func handleFileWriteUnchecked(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	// write_unchecked differs from write only in that the peer doesn't wait
	// for (or care about) the written-byte-count response; the daemon side
	// performs the identical write.
	if _, code := fileWrite(d, payload); code != apierrors.Success {
		return nil, code
	}
	return nil, apierrors.Success
}

func fileWrite(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	n, err := f.Write(payload[2:])
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 1)
	out[0] = uint8(n)
	return out, apierrors.Success
}

func handleFileSetPosition(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	offset := int64(getUint32(payload, 2)) | int64(getUint32(payload, 6))<<32
	origin := vfs.SeekOrigin(payload[10])
	pos, err := f.SetPosition(offset, origin)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 8)
	putUint32(out, 0, uint32(pos))
	putUint32(out, 4, uint32(pos>>32))
	return out, apierrors.Success
}

func handleFileGetPosition(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	pos, err := f.GetPosition()
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 8)
	putUint32(out, 0, uint32(pos))
	putUint32(out, 4, uint32(pos>>32))
	return out, apierrors.Success
}

func handleFileInfo(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	nameID := getUint16(payload, 0)
	followSymlink := payload[2] != 0
	no, code := d.lookup(object.KindString, nameID)
	if code != apierrors.Success {
		return nil, code
	}
	name, code := asString(no)
	if code != apierrors.Success {
		return nil, code
	}
	info, err := vfs.LookupInfo(string(name.Bytes()), followSymlink)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 1+4+8+4)
	if info.IsDirectory {
		out[0] |= 1
	}
	if info.IsSymlink {
		out[0] |= 2
	}
	putUint32(out, 1, uint32(info.Permissions))
	putUint32(out, 5, uint32(info.Length))
	putUint32(out, 9, uint32(info.Length>>32))
	putUint32(out, 13, uint32(info.ModifyTime))
	return out, apierrors.Success
}

// handleFileReadAsync implements read_async(file_id, length_to_read):
// starts the pump goroutine and registers its wake pipe with the
// reactor so each chunk arrives as a FuncFileAsyncReadCallback frame.
func handleFileReadAsync(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	length := getUint32(payload, 2)
	if err := f.StartAsyncRead(length, d.onFileAsyncReadChunk); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	d.watchFileAsyncRead(f)
	return nil, apierrors.Success
}

// handleFileAbortAsyncRead implements abort_async_read(file_id): §5
// requires it to be idempotent and to still deliver any chunk already
// queued before the abort arrived, which File.AbortAsyncRead handles.
func handleFileAbortAsyncRead(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	f.AbortAsyncRead()
	return nil, apierrors.Success
}

// handleFileWriteAsync implements write_async(file_id, buffer): the
// write happens synchronously inline, same as write_unchecked, and the
// result is reported through FuncFileAsyncWriteCallback rather than the
// response payload (file.c's file_write_async never blocks the peer on
// the actual write either).
func handleFileWriteAsync(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	f, code := d.lookupFile(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	n, err := f.Write(payload[2:])
	d.onFileAsyncWriteDone(f, n, apierrors.CodeOf(err))
	return nil, apierrors.Success
}

func handleFileSymlinkTarget(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	nameID := getUint16(payload, 0)
	canonicalize := payload[2] != 0
	no, code := d.lookup(object.KindString, nameID)
	if code != apierrors.Success {
		return nil, code
	}
	name, code := asString(no)
	if code != apierrors.Success {
		return nil, code
	}
	target, err := vfs.SymlinkTarget(string(name.Bytes()), canonicalize)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if len(target) > vfs.ReadChunkSize {
		target = target[:vfs.ReadChunkSize]
	}
	out := make([]byte, vfs.ReadChunkSize)
	copy(out, target)
	return out, apierrors.Success
}
