package dispatcher

import (
	apierrors "redapid/errors"
	"redapid/object"
	"redapid/value"
)

func (d *Dispatcher) registerList() {
	d.register(FuncListAllocate, "list.allocate", 6, handleListAllocate)
	d.register(FuncListLength, "list.length", 2, handleListLength)
	d.register(FuncListItem, "list.item", 6, handleListItem)
	d.register(FuncListAppend, "list.append", 4, handleListAppend)
	d.register(FuncListRemove, "list.remove", 4, handleListRemove)
}

func handleListAllocate(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	reserve := getUint32(payload, 2)

	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	l, err := value.NewList(d.inv, reserve)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if err := sess.Track(l); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, l.ID())
	return out, apierrors.Success
}

func handleListLength(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	o, code := d.lookup(object.KindList, id)
	if code != apierrors.Success {
		return nil, code
	}
	l, code := asList(o)
	if code != apierrors.Success {
		return nil, code
	}
	out := make([]byte, 2)
	putUint16(out, 0, uint16(l.Length()))
	return out, apierrors.Success
}

// handleListItem implements get_item(list_id, index, session_id): the
// returned item gets one external reference attributed to the requesting
// session, per §4.4's "GetItem ... caller is responsible for turning the
// returned object into an external reference via the requesting session".
func handleListItem(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	listID := getUint16(payload, 0)
	index := int(getUint16(payload, 2))
	sessionID := getUint16(payload, 4)

	o, code := d.lookup(object.KindList, listID)
	if code != apierrors.Success {
		return nil, code
	}
	l, code := asList(o)
	if code != apierrors.Success {
		return nil, code
	}
	item, err := l.GetItem(index)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	if err := sess.Track(item); err != nil {
		return nil, apierrors.CodeOf(err)
	}

	out := make([]byte, 3)
	putUint16(out, 0, item.ID())
	out[2] = uint8(item.Kind())
	return out, apierrors.Success
}

func handleListAppend(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	listID := getUint16(payload, 0)
	itemID := getUint16(payload, 2)

	lo, code := d.lookup(object.KindList, listID)
	if code != apierrors.Success {
		return nil, code
	}
	l, code := asList(lo)
	if code != apierrors.Success {
		return nil, code
	}
	item, code := d.lookup(object.AnyKind, itemID)
	if code != apierrors.Success {
		return nil, code
	}
	if err := l.Append(item); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleListRemove(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	listID := getUint16(payload, 0)
	index := int(getUint16(payload, 2))

	o, code := d.lookup(object.KindList, listID)
	if code != apierrors.Success {
		return nil, code
	}
	l, code := asList(o)
	if code != apierrors.Success {
		return nil, code
	}
	if err := l.Remove(index); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}
