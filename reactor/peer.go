package reactor

import (
	"golang.org/x/sys/unix"

	"redapid/logging"
	"redapid/wire"
)

// RequestHandler is the narrow surface the reactor needs from the
// dispatcher: decode, execute, encode. Defined here (rather than
// importing the dispatcher package) so reactor stays the lower layer in
// the dependency graph; the dispatcher package depends on reactor, not
// the reverse.
type RequestHandler interface {
	Dispatch(req wire.Frame) (resp wire.Frame, send bool)
}

// peerConn is the single admitted connection on the brickd socket: a
// non-blocking fd, a frame reassembler for inbound bytes, and an
// outbound byte queue for responses and callbacks that did not fully
// write on their first attempt (§5's IO_CONTINUE discipline).
type peerConn struct {
	fd      int
	handler RequestHandler
	re      *Reactor

	in  wire.Reassembler
	out []byte

	onClose func()
}

func newPeerConn(re *Reactor, fd int, handler RequestHandler, onClose func()) *peerConn {
	return &peerConn{fd: fd, handler: handler, re: re, onClose: onClose}
}

func (c *peerConn) events(ev uint32) {
	if ev&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		c.close()
		return
	}
	if ev&unix.EPOLLIN != 0 {
		c.readable()
	}
	if ev&unix.EPOLLOUT != 0 {
		c.writable()
	}
}

func (c *peerConn) readable() {
	buf := make([]byte, wire.MaxFrameSize*4)
	for {
		n, err := unix.Read(c.fd, buf)
		if n > 0 {
			frames, ferr := c.in.Feed(buf[:n])
			for _, f := range frames {
				c.handle(f)
			}
			if ferr != nil {
				logging.Error("peer sent a malformed frame, closing connection", "error", ferr)
				c.close()
				return
			}
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err != nil || n == 0 {
			c.close()
			return
		}
		if n < len(buf) {
			return
		}
	}
}

func (c *peerConn) handle(req wire.Frame) {
	resp, send := c.handler.Dispatch(req)
	if !send {
		return
	}
	c.Send(resp)
}

// Send queues a frame (a response or an unsolicited callback) for
// delivery to this peer, writing immediately when the socket has room
// and buffering the remainder for the next writable event otherwise.
func (c *peerConn) Send(f wire.Frame) {
	raw, err := wire.Encode(f)
	if err != nil {
		logging.Error("failed to encode outbound frame", "error", err)
		return
	}
	c.out = append(c.out, raw...)
	c.writable()
}

func (c *peerConn) writable() {
	for len(c.out) > 0 {
		n, err := unix.Write(c.fd, c.out)
		if n > 0 {
			c.out = c.out[n:]
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			c.re.Modify(c.fd, unix.EPOLLIN|unix.EPOLLOUT)
			return
		}
		if err != nil {
			c.close()
			return
		}
		if n == 0 {
			break
		}
	}
	c.re.Modify(c.fd, unix.EPOLLIN)
}

func (c *peerConn) close() {
	c.re.Unregister(c.fd)
	unix.Close(c.fd)
	if c.onClose != nil {
		c.onClose()
	}
}
