package reactor

import (
	"golang.org/x/sys/unix"

	"redapid/vfs"
)

// WatchFileAsyncRead registers a File's async-read wake pipe with the
// reactor (§5's "per-file async-read wake pipes" multiplexed alongside
// the peer socket and process waiter pipes). Each wake delivers the
// chunks queued since the last drain; the registration is removed once
// DrainAsyncRead reports the read has finished.
func (re *Reactor) WatchFileAsyncRead(f *vfs.File) {
	fd := int(f.AsyncReadFd())
	re.Register(fd, unix.EPOLLIN, func(uint32) {
		if f.DrainAsyncRead() {
			re.Unregister(fd)
		}
	})
}
