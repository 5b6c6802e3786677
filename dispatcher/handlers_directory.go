package dispatcher

import (
	"os"

	apierrors "redapid/errors"
	"redapid/object"
	"redapid/vfs"
)

func (d *Dispatcher) registerDirectory() {
	// open(session_id, name_string_id) -> directory_id
	d.register(FuncDirectoryOpen, "directory.open", 2+2, handleDirectoryOpen)
	// name(directory_id, session_id) -> name_string_id
	d.register(FuncDirectoryName, "directory.name", 2+2, handleDirectoryName)
	d.register(FuncDirectoryNextEntry, "directory.next_entry", 2, handleDirectoryNextEntry)
	d.register(FuncDirectoryRewind, "directory.rewind", 2, handleDirectoryRewind)
	// create(name_string_id, flags, permissions, uid, gid)
	d.register(FuncDirectoryCreate, "directory.create", 2+4+4+4+4, handleDirectoryCreate)
}

func (d *Dispatcher) lookupDirectory(payload []byte, off int) (*vfs.Directory, apierrors.Code) {
	id := getUint16(payload, off)
	o, code := d.lookup(object.KindDirectory, id)
	if code != apierrors.Success {
		return nil, code
	}
	dir, ok := o.(*vfs.Directory)
	if !ok {
		return nil, apierrors.InternalError
	}
	return dir, apierrors.Success
}

func handleDirectoryOpen(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	nameID := getUint16(payload, 2)

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
	dir, err := vfs.Open(d.inv, name)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if err := sess.Track(dir); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, dir.ID())
	return out, apierrors.Success
}

func handleDirectoryName(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	dir, code := d.lookupDirectory(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	sessionID := getUint16(payload, 2)
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	name := dir.Name()
	if err := sess.Track(name); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, name.ID())
	return out, apierrors.Success
}

// handleDirectoryNextEntry encodes Entry as (type:u8, name:58B,
// nul-terminated when shorter), matching the string set_chunk window.
// Names longer than 58 bytes are truncated to their first 58 bytes.
func handleDirectoryNextEntry(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	dir, code := d.lookupDirectory(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	e, err := dir.NextEntry()
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	const nameWindow = 58
	out := make([]byte, 1+nameWindow)
	out[0] = uint8(e.Type)
	name := e.Name
	if len(name) > nameWindow {
		name = name[:nameWindow]
	}
	copy(out[1:], name)
	return out, apierrors.Success
}

func handleDirectoryRewind(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	dir, code := d.lookupDirectory(payload, 0)
	if code != apierrors.Success {
		return nil, code
	}
	dir.Rewind()
	return nil, apierrors.Success
}

func handleDirectoryCreate(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	nameID := getUint16(payload, 0)
	flags := vfs.Flags(getUint32(payload, 2))
	permissions := os.FileMode(getUint32(payload, 6))
	uid := getUint32(payload, 10)
	gid := getUint32(payload, 14)

	no, code := d.lookup(object.KindString, nameID)
	if code != apierrors.Success {
		return nil, code
	}
	name, code := asString(no)
	if code != apierrors.Success {
		return nil, code
	}
	if err := vfs.Create(string(name.Bytes()), flags, permissions, uid, gid); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}
