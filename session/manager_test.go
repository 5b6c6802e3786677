package session

import (
	"testing"
	"time"
)

func TestManagerCreateAssignsDistinctIDs(t *testing.T) {
	m := NewManager()
	s1, err := m.Create(time.Second, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s2, err := m.Create(time.Second, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s1.ID() == 0 || s2.ID() == 0 || s1.ID() == s2.ID() {
		t.Errorf("expected distinct non-zero ids, got %d and %d", s1.ID(), s2.ID())
	}
	if m.Get(s1.ID()) != s1 {
		t.Error("Get should resolve the created session")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}
}

func TestManagerExpireRemovesSession(t *testing.T) {
	m := NewManager()
	s, err := m.Create(time.Second, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Expire(s.ID()); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	if m.Get(s.ID()) != nil {
		t.Error("expected Get to return nil after Expire")
	}
	if !s.IsExpired() {
		t.Error("expected the session itself to be marked expired")
	}
}

func TestManagerExpireUnknownIsNoOp(t *testing.T) {
	m := NewManager()
	if err := m.Expire(999); err != nil {
		t.Errorf("Expire(unknown) = %v, want nil", err)
	}
}
