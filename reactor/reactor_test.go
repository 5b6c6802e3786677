package reactor

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestPostRunsJobsInOrderOnLoop(t *testing.T) {
	re, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	done := make(chan struct{})
	go func() {
		re.Run()
		close(done)
	}()

	results := make(chan int, 3)
	re.Post(func() { results <- 1 })
	re.Post(func() { results <- 2 })
	re.Post(func() { results <- 3 })

	for want := 1; want <= 3; want++ {
		select {
		case got := <-results:
			if got != want {
				t.Errorf("job order: got %d, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d", want)
		}
	}

	re.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRegisterFiresAndUnregisterSilences(t *testing.T) {
	re, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer re.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	fired := make(chan uint32, 8)
	if err := re.Register(int(r.Fd()), unix.EPOLLIN, func(ev uint32) { fired <- ev }); err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan struct{})
	go func() {
		re.Run()
		close(done)
	}()

	if _, err := w.Write([]byte{1}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case ev := <-fired:
		if ev&unix.EPOLLIN == 0 {
			t.Errorf("events = %#x, want EPOLLIN set", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked after write")
	}

	// Drain the byte so the fd is no longer readable, then unregister on
	// the loop goroutine itself via Post (Register/Unregister are only
	// safe to call from the loop that also reads the callback map).
	buf := make([]byte, 1)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	unregistered := make(chan struct{})
	re.Post(func() {
		re.Unregister(int(r.Fd()))
		close(unregistered)
	})
	select {
	case <-unregistered:
	case <-time.After(2 * time.Second):
		t.Fatal("Unregister job never ran")
	}

	// Drain any events queued between the write and the unregister.
	drain := true
	for drain {
		select {
		case <-fired:
		default:
			drain = false
		}
	}

	if _, err := w.Write([]byte{2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case ev := <-fired:
		t.Fatalf("callback fired after Unregister: %#x", ev)
	case <-time.After(200 * time.Millisecond):
	}

	re.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
