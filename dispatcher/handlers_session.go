package dispatcher

import (
	"time"

	apierrors "redapid/errors"
	"redapid/session"
)

func (d *Dispatcher) registerSession() {
	d.register(FuncSessionCreate, "session.create", 4, handleSessionCreate)
	d.register(FuncSessionExpire, "session.expire", 2, handleSessionExpire)
	d.register(FuncSessionKeepAlive, "session.keep_alive", 2, handleSessionKeepAlive)
}

// handleSessionCreate implements create(lifetime_seconds). session.New
// caps the lifetime at session.MaxLifetime and treats 0 as MaxLifetime.
func handleSessionCreate(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	lifetime := time.Duration(getUint32(payload, 0)) * time.Second
	sess, err := d.sessions.Create(lifetime, d.onSessionExpire)
	if err != nil {
		return nil, apierrors.CodeOf(err)
	}
	out := make([]byte, 2)
	putUint16(out, 0, sess.ID())
	return out, apierrors.Success
}

// onSessionExpire is session.Session's timer hand-off (§5): fire runs on
// the session's own timer goroutine, so the actual teardown is posted
// onto the reactor's main loop rather than run here directly. Without a
// reactor attached (dispatcher tests), it runs inline on the calling
// goroutine, which for those tests is the only goroutine touching the
// inventory anyway.
func (d *Dispatcher) onSessionExpire(s *session.Session) {
	expire := func() { d.sessions.Expire(s.ID()) }
	if d.react != nil {
		d.react.Post(expire)
		return
	}
	expire()
}

func handleSessionExpire(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	if err := d.sessions.Expire(id); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}

func handleSessionKeepAlive(d *Dispatcher, payload []byte) ([]byte, apierrors.Code) {
	id := getUint16(payload, 0)
	sess := d.sessions.Get(id)
	if sess == nil {
		return nil, apierrors.UnknownSessionID
	}
	if err := sess.KeepAlive(); err != nil {
		return nil, apierrors.CodeOf(err)
	}
	return nil, apierrors.Success
}
