// Package session implements the per-peer Session object described in
// spec §4.3: the sole owner of the (object, external-ref-count) tallies
// that gate remove_external_ref, plus the bounded lifetime timer that
// forces a cascading release when a peer goes quiet.
package session

import (
	"time"

	apierrors "redapid/errors"
	"redapid/object"
)

// MaxLifetime is the hard ceiling on a session's keep-alive lifetime (§3).
const MaxLifetime = 3600 * time.Second

// tally is one tracked object together with how many times this session
// has added an external reference to it. Sessions keep these in the order
// objects were first tracked so Expire can release them in that order,
// satisfying §4.3's ordering guarantee.
type tally struct {
	obj   object.Object
	count int
}

// Session is a peer connection's claim on a set of inventory objects. It
// is not reusable once expired: a new connection gets a new Session id.
type Session struct {
	id       uint16
	lifetime time.Duration

	order []uint16           // object id insertion order
	tally map[uint16]*tally  // object id -> tally
	timer *time.Timer
	onExpire func(*Session)
	expired  bool
}

// New creates a Session with the given id and requested lifetime, capped
// at MaxLifetime; a zero or negative lifetime becomes MaxLifetime. onExpire, if non-nil, is invoked once when the
// session's timer fires, before objects are released, so the caller (the
// dispatcher) can stop routing replies to it.
func New(id uint16, lifetime time.Duration, onExpire func(*Session)) *Session {
	if lifetime <= 0 {
		lifetime = MaxLifetime
	}
	if lifetime > MaxLifetime {
		lifetime = MaxLifetime
	}
	s := &Session{
		id:       id,
		lifetime: lifetime,
		tally:    make(map[uint16]*tally),
		onExpire: onExpire,
	}
	s.timer = time.AfterFunc(lifetime, s.fire)
	return s
}

func (s *Session) ID() uint16 { return s.id }

// KeepAlive resets the expiry timer, per the peer's keep-alive ping (§6).
func (s *Session) KeepAlive() error {
	if s.expired {
		return apierrors.New(apierrors.UnknownSessionID, "session.keep_alive")
	}
	s.timer.Reset(s.lifetime)
	return nil
}

// Track adds one external reference to o on behalf of this session,
// recording the object on first sight so Expire knows the release order.
func (s *Session) Track(o object.Object) error {
	if s.expired {
		return apierrors.New(apierrors.UnknownSessionID, "session.track")
	}
	t, ok := s.tally[o.ID()]
	if !ok {
		t = &tally{obj: o}
		s.tally[o.ID()] = t
		s.order = append(s.order, o.ID())
	}
	t.count++
	o.AddExternalRef()
	return nil
}

// Release drops one external reference this session holds on the object
// with the given id, per the peer-facing release(o) operation. It is an
// error to release an object this session is not currently tracking.
func (s *Session) Release(id uint16) error {
	if s.expired {
		return apierrors.New(apierrors.UnknownSessionID, "session.release")
	}
	t, ok := s.tally[id]
	if !ok || t.count <= 0 {
		return apierrors.New(apierrors.InvalidOperation, "session.release")
	}
	t.count--
	err := t.obj.RemoveExternalRef()
	if t.count == 0 {
		delete(s.tally, id)
		s.removeFromOrder(id)
	}
	return err
}

func (s *Session) removeFromOrder(id uint16) {
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// fire runs on the session's timer goroutine. Per §5's single-threaded
// model, it must not touch objects directly: it only calls onExpire, which
// schedules the cascading release onto the reactor (Expire marks the
// session expired there), the same hand-off discipline used by the
// process waiter thread.
func (s *Session) fire() {
	if s.onExpire != nil {
		s.onExpire(s)
	}
}

// Expire releases every object this session still holds, in the order
// they were first tracked, then marks the session unusable. It is called
// by the dispatcher from the reactor goroutine, never from fire directly.
func (s *Session) Expire() error {
	if s.expired {
		return nil
	}
	s.timer.Stop()
	var first error
	order := append([]uint16(nil), s.order...)
	for _, id := range order {
		t, ok := s.tally[id]
		if !ok {
			continue
		}
		for t.count > 0 {
			t.count--
			if err := t.obj.RemoveExternalRef(); err != nil && first == nil {
				first = err
			}
		}
	}
	s.tally = make(map[uint16]*tally)
	s.order = nil
	s.expired = true
	return first
}

// IsExpired reports whether the session has already been torn down.
func (s *Session) IsExpired() bool { return s.expired }

// TrackedCount returns the number of distinct objects this session
// currently holds external references to. Used by tests and diagnostics.
func (s *Session) TrackedCount() int { return len(s.order) }
