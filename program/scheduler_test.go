package program

import (
	"testing"
	"time"

	"redapid/inventory"
	"redapid/process"
	"redapid/value"
)

func newTestIdentifier(t *testing.T, inv *inventory.Table, name string) *value.String {
	t.Helper()
	s, err := value.NewString(inv, uint32(len(name)))
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if err := s.SetChunk(0, []byte(name)); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}
	return s
}

func newTestConfig(mode StartMode) *Config {
	return &Config{
		Version:          ConfigVersion,
		Executable:       "/bin/true",
		WorkingDirectory: "/tmp/redapid-test",
		StartMode:        mode,
		RepeatInterval:   1,
	}
}

func TestUpdateNeverModeStaysStopped(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	id := newTestIdentifier(t, inv, "prog-never")
	spawned := false
	p, err := New(inv, t.TempDir(), id, newTestConfig(StartModeNever), func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		spawned = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update(true, true, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.State() != StateStopped {
		t.Errorf("state = %v, want Stopped", p.State())
	}
	if spawned {
		t.Error("Never mode must not spawn")
	}
}

func TestUpdateAlwaysModeSpawnsOnce(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	id := newTestIdentifier(t, inv, "prog-always")
	spawnCount := 0
	p, err := New(inv, t.TempDir(), id, newTestConfig(StartModeAlways), func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		spawnCount++
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update(true, true, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.State() != StateRunning {
		t.Errorf("state = %v, want Running", p.State())
	}
	if spawnCount != 1 {
		t.Errorf("spawnCount = %d, want 1", spawnCount)
	}
}

func TestUpdateWaitsForObserverOnX11(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	id := newTestIdentifier(t, inv, "prog-x11")
	cfg := newTestConfig(StartModeAlways)
	cfg.Environment = []string{"DISPLAY=:0"}
	spawned := false
	p, err := New(inv, t.TempDir(), id, cfg, func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		spawned = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update(true, true, true); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if spawned {
		t.Error("expected spawn to be deferred until observer finishes")
	}
	if p.observer != ObserverWaiting {
		t.Errorf("observer = %v, want Waiting", p.observer)
	}

	if err := p.ObserverFinish(true, true); err != nil {
		t.Fatalf("ObserverFinish: %v", err)
	}
	if !spawned {
		t.Error("expected spawn after observer finished")
	}
}

func TestIntervalModeReschedules(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	id := newTestIdentifier(t, inv, "prog-interval")
	cfg := newTestConfig(StartModeInterval)
	cfg.RepeatInterval = 0 // clamped to 1s floor by startIntervalTimer

	p, err := New(inv, t.TempDir(), id, cfg, func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Update(true, true, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.intervalTimer == nil {
		t.Fatal("expected an interval timer to be armed")
	}
	p.Shutdown()
	if p.intervalTimer != nil {
		t.Error("expected Shutdown to stop the interval timer")
	}
}

func TestCronFilePathUsesNumericID(t *testing.T) {
	got := CronFilePath(42)
	want := "/etc/cron.d/redapid-schedule-program-42"
	if got != want {
		t.Errorf("CronFilePath(42) = %q, want %q", got, want)
	}
}

func TestCronField(t *testing.T) {
	if got := cronField(0, 60); got != "*" {
		t.Errorf("cronField(0) = %q, want *", got)
	}
	if got := cronField(0b101, 7); got != "0,2" {
		t.Errorf("cronField(0b101) = %q, want 0,2", got)
	}
}

func TestSetLastSchedulerErrorLocksAndReplaces(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	id := newTestIdentifier(t, inv, "prog-err")
	p, err := New(inv, t.TempDir(), id, newTestConfig(StartModeNever), func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg1, err := value.NewString(inv, 5)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	msg1.SetChunk(0, []byte("boom1"))
	p.SetLastSchedulerError(msg1)
	if msg1.LockCount() == 0 {
		t.Error("expected first error message to be locked")
	}

	msg2, err := value.NewString(inv, 5)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	msg2.SetChunk(0, []byte("boom2"))
	p.SetLastSchedulerError(msg2)
	if msg1.LockCount() != 0 {
		t.Error("expected replaced error message to be unlocked")
	}
	if p.LastSchedulerError() != msg2 {
		t.Error("expected LastSchedulerError to return the latest message")
	}
}

func TestShutdownWithoutLiveProcessIsNoOp(t *testing.T) {
	// Exercises the code path with no live process: haltScheduler must be a
	// no-op when lastSpawned is nil, not panic.
	inv := inventory.NewTable(value.NewStockString)
	id := newTestIdentifier(t, inv, "prog-shutdown")
	p, err := New(inv, t.TempDir(), id, newTestConfig(StartModeNever), func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	time.Sleep(time.Millisecond) // let any stray timer fire harmlessly
}
