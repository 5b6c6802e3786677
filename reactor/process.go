package reactor

import (
	"golang.org/x/sys/unix"

	"redapid/process"
)

// WatchProcess registers a spawned Process's wake pipe with the reactor.
// When the waiter thread's one-byte wake arrives, HandleWake runs on this
// goroutine (the main loop), invoking the process's on_state_change
// handler and releasing the per-spawn references, exactly as §4.6 and §5
// require. The registration is one-shot: a Process only ever wakes once.
func (re *Reactor) WatchProcess(p *process.Process) {
	fd := int(p.WakeFd())
	re.Register(fd, unix.EPOLLIN, func(uint32) {
		re.Unregister(fd)
		p.HandleWake()
	})
}
