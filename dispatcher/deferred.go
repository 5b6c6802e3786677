package dispatcher

import apierrors "redapid/errors"

// registerDeferredEntry reserves a function id that a peer should never
// dispatch as a request: the file/process/program callback ids, all
// server-initiated rather than peer-initiated. Dispatching any of them
// returns NOT_SUPPORTED rather than INVALID_PARAMETER, so a peer can tell
// "unimplemented"/"not a request" apart from "malformed request".
func (d *Dispatcher) registerDeferredEntry(id uint8, name string) {
	d.register(id, name, -1, handleDeferred)
}

func handleDeferred(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	return nil, apierrors.NotSupported
}
