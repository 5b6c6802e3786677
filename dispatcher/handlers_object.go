package dispatcher

import (
	"sort"

	apierrors "redapid/errors"
	"redapid/object"
)

func (d *Dispatcher) registerObjectTable() {
	d.register(FuncObjectGetType, "object.get_type", 2, handleObjectGetType)
	d.register(FuncObjectNextEntry, "object.next_entry", 1, handleObjectNextEntry)
	d.register(FuncObjectRewind, "object.rewind", 1, handleObjectRewind)
	// release(session_id, object_id): drops one external reference this
	// session holds, the kind-agnostic release(o) of §4.2. Every object
	// kind shares this single opcode instead of declaring its own.
	d.register(FuncObjectRelease, "object.release", 2+2, handleObjectRelease)
}

func handleObjectRelease(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	objectID := getUint16(payload, 2)

	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	if err := sess.Release(objectID); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleObjectGetType(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	o, code := d.lookup(object.AnyKind, id)
	if code != apierrors.Success {
		return nil, code
	}
	return []byte{uint8(o.Kind())}, apierrors.Success
}

// handleObjectRewind snapshots the current live ids of a kind, sorted, so
// a following run of next_entry calls enumerates a stable view even if
// objects are created or destroyed mid-walk.
func handleObjectRewind(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	kind := object.Kind(payload[0])
	ids := d.liveIDs(kind)
	d.cursorIDs[kind] = ids
	d.cursorPos[kind] = 0
	return nil, apierrors.Success
}

func handleObjectNextEntry(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	kind := object.Kind(payload[0])
	ids, ok := d.cursorIDs[kind]
	if !ok {
		ids = d.liveIDs(kind)
		d.cursorIDs[kind] = ids
	}
	pos := d.cursorPos[kind]
	if pos >= len(ids) {
		return nil, apierrors.NoMoreData
	}
	d.cursorPos[kind] = pos + 1
	out := make([]byte, 2)
	putUint16(out, 0, ids[pos])
	return out, apierrors.Success
}

func (d *Dispatcher) liveIDs(kind object.Kind) []uint16 {
	var ids []uint16
	for _, k := range object.TeardownOrder {
		if kind != object.AnyKind && k != kind {
			continue
		}
		ids = append(ids, d.inv.LiveIDs(k)...)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
