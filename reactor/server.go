package reactor

import (
	"os"

	"golang.org/x/sys/unix"

	"redapid/cron"
	apierrors "redapid/errors"
	"redapid/logging"
	"redapid/wire"
)

// CronHandler receives a decoded cron notification frame (§6: "a 6-byte
// {cookie: u32, program_id: u16} struct").
type CronHandler interface {
	HandleCronWake(n cron.Notification)
}

// Server owns the two listening UNIX sockets named in §6 and feeds
// accepted connections into the reactor.
type Server struct {
	re *Reactor

	brickdPath string
	cronPath   string

	brickdFD int
	cronFD   int

	handler RequestHandler
	cron    CronHandler

	peer *peerConn
}

// NewServer binds the brickd and cron sockets at the given paths,
// removing any stale socket file left behind by a previous run.
func NewServer(re *Reactor, brickdPath, cronPath string, handler RequestHandler, cron CronHandler) (*Server, error) {
	s := &Server{re: re, brickdPath: brickdPath, cronPath: cronPath, handler: handler, cron: cron}

	brickdFD, err := listenUnix(brickdPath)
	if err != nil {
		return nil, err
	}
	s.brickdFD = brickdFD

	cronFD, err := listenUnix(cronPath)
	if err != nil {
		unix.Close(brickdFD)
		return nil, err
	}
	s.cronFD = cronFD

	if err := re.Register(brickdFD, unix.EPOLLIN, s.acceptBrickd); err != nil {
		return nil, err
	}
	if err := re.Register(cronFD, unix.EPOLLIN, s.acceptCron); err != nil {
		return nil, err
	}
	return s, nil
}

func listenUnix(path string) (int, error) {
	os.Remove(path)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, apierrors.WrapErrno(err, "reactor.listen")
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, apierrors.WrapErrno(err, "reactor.listen")
	}
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return -1, apierrors.WrapErrno(err, "reactor.listen")
	}
	return fd, nil
}

// acceptBrickd admits exactly one concurrent peer (§6): a connection
// arriving while one is already active is accepted and immediately
// closed.
func (s *Server) acceptBrickd(uint32) {
	for {
		fd, _, err := unix.Accept4(s.brickdFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			return
		}
		if s.peer != nil {
			unix.Close(fd)
			continue
		}
		s.peer = newPeerConn(s.re, fd, s.handler, func() { s.peer = nil })
		s.re.Register(fd, unix.EPOLLIN, s.peer.events)
		logging.Info("brickd peer connected")
	}
}

// acceptCron admits a cron client and registers it for its own
// notification read; the frame may arrive split across several
// non-blocking reads, so each connection gets a cron.Client accumulator
// rather than being read inline here.
func (s *Server) acceptCron(uint32) {
	for {
		fd, _, err := unix.Accept4(s.cronFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			return
		}
		client := &cron.Client{}
		s.re.Register(fd, unix.EPOLLIN, func(uint32) { s.cronReadable(fd, client) })
	}
}

func (s *Server) cronReadable(fd int, client *cron.Client) {
	buf := make([]byte, cron.NotificationSize)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			if notif, complete := client.Feed(buf[:n]); complete {
				s.closeCron(fd)
				if s.cron != nil {
					s.cron.HandleCronWake(notif)
				}
				return
			}
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if err != nil || n == 0 {
			s.closeCron(fd)
			return
		}
	}
}

func (s *Server) closeCron(fd int) {
	s.re.Unregister(fd)
	unix.Close(fd)
}

// Deliver sends an unsolicited callback frame (process state-change,
// scheduler state-change, ...) to the connected peer, if any. It is
// silently dropped when no peer is connected: §5 only promises ordering
// relative to the peer's queues, and there being no peer to notify is not
// itself an error condition.
func (s *Server) Deliver(f wire.Frame) {
	if s.peer != nil {
		s.peer.Send(f)
	}
}

// Connected reports whether a brickd peer is currently attached.
func (s *Server) Connected() bool { return s.peer != nil }

// Close releases both listening sockets and the socket files.
func (s *Server) Close() {
	if s.peer != nil {
		s.peer.close()
	}
	s.re.Unregister(s.brickdFD)
	s.re.Unregister(s.cronFD)
	unix.Close(s.brickdFD)
	unix.Close(s.cronFD)
	os.Remove(s.brickdPath)
	os.Remove(s.cronPath)
}
