package process

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"redapid/inventory"
	"redapid/object"
	"redapid/value"
)

// fakeFD adapts an *os.File into an object.Object + Fd() pair standing in
// for a vfs.File, so these tests don't need the full filesystem object
// machinery to exercise spawn/wait/kill.
type fakeFD struct {
	*object.Base
	f *os.File
}

func (f *fakeFD) Fd() uintptr { return f.f.Fd() }

func newFakeFD(t *testing.T, inv *inventory.Table, path string) *fakeFD {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	id, err := inv.Reserve()
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	fd := &fakeFD{f: f}
	fd.Base = object.NewBase(id, object.KindFile, inv, nil)
	if err := inv.Add(fd); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return fd
}

func buildSpec(t *testing.T, inv *inventory.Table, executable string, args []string) Spec {
	t.Helper()
	setText := func(s *value.String, text string) {
		for off := 0; off < len(text); off += value.SetChunkSize {
			end := off + value.SetChunkSize
			if end > len(text) {
				end = len(text)
			}
			s.SetChunk(uint32(off), []byte(text[off:end]))
		}
	}
	exe, err := value.NewString(inv, uint32(len(executable)))
	if err != nil {
		t.Fatalf("NewString(executable): %v", err)
	}
	setText(exe, executable)

	argv, err := value.NewList(inv, uint32(len(args)))
	if err != nil {
		t.Fatalf("NewList(args): %v", err)
	}
	for _, a := range args {
		s, err := value.NewString(inv, uint32(len(a)))
		if err != nil {
			t.Fatalf("NewString(arg): %v", err)
		}
		setText(s, a)
		if err := argv.Append(s); err != nil {
			t.Fatalf("Append(arg): %v", err)
		}
	}

	env, err := value.NewList(inv, 0)
	if err != nil {
		t.Fatalf("NewList(env): %v", err)
	}

	wd, err := value.NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString(wd): %v", err)
	}
	setText(wd, t.TempDir())

	return Spec{
		Executable:  exe,
		Arguments:   argv,
		Environment: env,
		WorkingDir:  wd,
		UID:         uint32(os.Getuid()),
		GID:         uint32(os.Getgid()),
		Stdio: StdioRefs{
			Stdin:  newFakeFD(t, inv, os.DevNull),
			Stdout: newFakeFD(t, inv, os.DevNull),
			Stderr: newFakeFD(t, inv, os.DevNull),
		},
	}
}

func waitWake(p *Process) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		syscall.Read(int(p.WakeFd()), buf)
		ch <- struct{}{}
	}()
	return ch
}

func TestSpawnExitsCleanly(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	script := filepath.Join(t.TempDir(), "run.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	spec := buildSpec(t, inv, script, nil)

	var mu sync.Mutex
	var gotState State
	done := make(chan struct{})
	p, err := Spawn(inv, spec, func(p *Process) {
		mu.Lock()
		gotState = p.State()
		mu.Unlock()
		close(done)
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case <-waitWake(p):
		p.HandleWake()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process wake")
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	if gotState != StateExited {
		t.Errorf("state = %v, want Exited", gotState)
	}
	if p.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", p.ExitCode())
	}
}

func TestSpawnMissingExecutableReportsNotFoundExitCode(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	spec := buildSpec(t, inv, filepath.Join(t.TempDir(), "does-not-exist"), nil)

	p, err := Spawn(inv, spec, func(*Process) {})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if p.State() != StateError {
		t.Errorf("state = %v, want Error", p.State())
	}
	if p.ExitCode() != ExitNotFound {
		t.Errorf("exit code = %d, want %d (ExitNotFound)", p.ExitCode(), ExitNotFound)
	}
}

func TestKillIsNoOpInTerminalState(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	script := filepath.Join(t.TempDir(), "run.sh")
	os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0755)
	spec := buildSpec(t, inv, script, nil)

	p, err := Spawn(inv, spec, func(*Process) {})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	<-waitWake(p)
	p.HandleWake()

	if err := p.Kill(syscall.SIGKILL); err != nil {
		t.Errorf("Kill on terminal process should be a no-op, got %v", err)
	}
}

func TestSpawnTakesInternalRefsAndLocksOnInputs(t *testing.T) {
	inv := inventory.NewTable(value.NewStockString)
	script := filepath.Join(t.TempDir(), "sleep.sh")
	os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0755)
	spec := buildSpec(t, inv, script, nil)

	p, err := Spawn(inv, spec, func(*Process) {})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if spec.Executable.LockCount() == 0 {
		t.Error("expected spawn to lock the executable String")
	}
	if spec.Arguments.LockCount() == 0 {
		t.Error("expected spawn to lock the arguments List")
	}

	p.Kill(syscall.SIGKILL)
	<-waitWake(p)
	p.HandleWake()

	if spec.Executable.LockCount() != 0 {
		t.Error("expected wake handling to release the executable lock")
	}
}
