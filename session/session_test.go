package session

import (
	"testing"
	"time"

	"redapid/object"
)

type fakeObj struct {
	*object.Base
}

func newFake(id uint16, kind object.Kind) *fakeObj {
	f := &fakeObj{}
	f.Base = object.NewBase(id, kind, nil, nil)
	f.AddInternalRef() // keep alive independent of external refs for these tests
	return f
}

func TestTrackAndRelease(t *testing.T) {
	s := New(1, time.Minute, nil)
	o := newFake(10, object.KindString)

	if err := s.Track(o); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if o.ExternalRefs() != 1 {
		t.Errorf("ExternalRefs() = %d, want 1", o.ExternalRefs())
	}
	if err := s.Release(10); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if o.ExternalRefs() != 0 {
		t.Errorf("ExternalRefs() = %d, want 0", o.ExternalRefs())
	}
}

func TestReleaseWithoutTrackFails(t *testing.T) {
	s := New(1, time.Minute, nil)
	if err := s.Release(99); err == nil {
		t.Error("expected error releasing an untracked id")
	}
}

func TestReleaseStacksCorrectly(t *testing.T) {
	s := New(1, time.Minute, nil)
	o := newFake(10, object.KindString)

	s.Track(o)
	s.Track(o)
	if o.ExternalRefs() != 2 {
		t.Fatalf("ExternalRefs() = %d, want 2", o.ExternalRefs())
	}
	if err := s.Release(10); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if o.ExternalRefs() != 1 {
		t.Errorf("ExternalRefs() = %d, want 1 after one release", o.ExternalRefs())
	}
	if s.TrackedCount() != 1 {
		t.Errorf("expected object still tracked after partial release")
	}
	if err := s.Release(10); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if s.TrackedCount() != 0 {
		t.Errorf("expected object untracked once tally reaches zero")
	}
}

func TestExpireReleasesInOrder(t *testing.T) {
	s := New(1, time.Minute, nil)
	first := newFake(10, object.KindString)
	second := newFake(11, object.KindString)

	s.Track(first)
	s.Track(second)
	s.Track(first)

	if err := s.Expire(); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if first.ExternalRefs() != 0 || second.ExternalRefs() != 0 {
		t.Error("expected all external refs released on expire")
	}
	if !s.IsExpired() {
		t.Error("expected session marked expired")
	}
	if s.TrackedCount() != 0 {
		t.Error("expected no tracked objects after expire")
	}
}

func TestExpiredSessionRejectsOperations(t *testing.T) {
	s := New(1, time.Minute, nil)
	o := newFake(10, object.KindString)
	s.Track(o)
	if err := s.Expire(); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if err := s.Track(o); err == nil {
		t.Error("expected Track to fail on expired session")
	}
	if err := s.Release(10); err == nil {
		t.Error("expected Release to fail on expired session")
	}
	if err := s.KeepAlive(); err == nil {
		t.Error("expected KeepAlive to fail on expired session")
	}
}

func TestLifetimeClampedToMax(t *testing.T) {
	s := New(1, 2*MaxLifetime, nil)
	if s.lifetime != MaxLifetime {
		t.Errorf("lifetime = %v, want %v", s.lifetime, MaxLifetime)
	}
}

func TestTimerFiresOnExpire(t *testing.T) {
	fired := make(chan *Session, 1)
	s := New(1, 10*time.Millisecond, func(sess *Session) {
		fired <- sess
	})

	select {
	case got := <-fired:
		if got.ID() != s.ID() {
			t.Errorf("onExpire called with wrong session")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session timer to fire")
	}
}
