package dispatcher

import (
	apierrors "redapid/errors"
	"redapid/object"
	"redapid/value"
)

func (d *Dispatcher) registerString() {
	d.register(FuncStringAcquire, "string.acquire", 2+4, handleStringAcquire)
	d.register(FuncStringTruncate, "string.truncate", 6, handleStringTruncate)
	d.register(FuncStringLength, "string.length", 2, handleStringLength)
	d.register(FuncStringSetChunk, "string.set_chunk", 2+4+value.SetChunkSize, handleStringSetChunk)
	d.register(FuncStringGetChunk, "string.get_chunk", 6, handleStringGetChunk)
}

// handleStringAcquire implements acquire(session_id, length): allocates a
// new String and attributes one external reference to the caller's
// session, per §3's "objects are created ... with one external reference
// attributed to the caller's session".
func handleStringAcquire(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	sessionID := getUint16(payload, 0)
	reserve := getUint32(payload, 2)

	sess := d.sessions.Get(sessionID)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	s, err := value.NewString(d.inv, reserve)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	if err := sess.Track(s); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, s.ID())
	return out, apierrors.Success
}

func handleStringTruncate(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	length := getUint32(payload, 2)
	o, code := d.lookup(object.KindString, id)
	if code != apierrors.Success {
		return nil, code
	}
	s, code := asString(o)
	if code != apierrors.Success {
		return nil, code
	}
	if err := s.Truncate(length); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleStringLength(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	o, code := d.lookup(object.KindString, id)
	if code != apierrors.Success {
		return nil, code
	}
	s, code := asString(o)
	if code != apierrors.Success {
		return nil, code
	}
	out := make([]byte, 4)
	putUint32(out, 0, s.Length())
	return out, apierrors.Success
}

func handleStringSetChunk(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	offset := getUint32(payload, 2)
	window := payload[6:]
	o, code := d.lookup(object.KindString, id)
	if code != apierrors.Success {
		return nil, code
	}
	s, code := asString(o)
	if code != apierrors.Success {
		return nil, code
	}
	if err := s.SetChunk(offset, window); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleStringGetChunk(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	offset := getUint32(payload, 2)
	o, code := d.lookup(object.KindString, id)
	if code != apierrors.Success {
		return nil, code
	}
	s, code := asString(o)
	if code != apierrors.Success {
		return nil, code
	}
	chunk, err := s.GetChunk(offset)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return chunk[:], apierrors.Success
}
