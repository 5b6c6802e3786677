package dispatcher

import apierrors "redapid/errors"

// protocol/firmware version tuple reported by identity(), fixed for this
// daemon revision (§C.1 of the expanded spec).
const (
	protocolVersionMajor = 1
	firmwareVersionMajor = 2
	firmwareVersionMinor = 0
	firmwareVersionPatch = 0
)

func (d *Dispatcher) registerIdentity() {
	d.register(FuncIdentityGet, "identity.get", 0, handleIdentityGet)
	d.register(FuncIdentityEcho, "identity.echo", 0, handleIdentityEcho)
}

// handleIdentityGet returns the daemon's uid (read from
// /proc/red_brick_uid at startup) plus a fixed protocol/firmware version
// tuple (§C.1).
func handleIdentityGet(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	out := make([]byte, 4+4)
	putUint32(out, 0, d.uid)
	out[4] = protocolVersionMajor
	out[5] = firmwareVersionMajor
	out[6] = firmwareVersionMinor
	out[7] = firmwareVersionPatch
	return out, apierrors.Success
}

// handleIdentityEcho is the no-op "are you alive" opcode recovered from
// original_source/'s vision.c (§C.2): no side effect, empty response.
func handleIdentityEcho(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	return nil, apierrors.Success
}
