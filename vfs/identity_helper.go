package vfs

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	apierrors "redapid/errors"
)

// HelperReexecEnv is the environment variable the daemon's own binary
// checks for on startup to detect it was launched as an identity-switch
// helper rather than as the daemon itself (see cmd/helper.go).
const HelperReexecEnv = "REDAPID_IDENTITY_HELPER"

// identityMatches reports whether uid/gid are exactly this process's
// current effective identity, the condition under which open()/create()
// (§4.5) may proceed in-process instead of forking the helper.
func identityMatches(uid, gid uint32) bool {
	return uid == uint32(os.Geteuid()) && gid == uint32(os.Getegid())
}

// runHelper re-execs this binary as the identity helper, feeds it a
// "<action>\x00<path>\x00<flags>\x00<perm>\x00<uid>\x00<gid>" request
// over a unix socketpair, and returns whatever HelperMain sends back:
// a received fd for action "open", or nil with a nil error for a bare
// success acknowledgement (action "mkdir").
func runHelper(action, path string, osFlags int, permissions os.FileMode, uid, gid uint32) (*os.File, error) {
	parent, child, err := socketpair()
	if err != nil {
		return nil, err
	}
	defer parent.Close()

	self, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(self)
	cmd.Env = append(os.Environ(), HelperReexecEnv+"="+action)
	cmd.ExtraFiles = []*os.File{child}
	cmd.Stderr = os.Stderr

	req := fmt.Sprintf("%s\x00%s\x00%d\x00%d\x00%d\x00%d", action, path, osFlags, permissions, uid, gid)
	if err := cmd.Start(); err != nil {
		child.Close()
		return nil, err
	}
	child.Close()

	if _, err := parent.Write([]byte(req)); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, err
	}

	fd, helperErr, err := recvFD(parent)
	waitErr := cmd.Wait()
	if err != nil {
		return nil, err
	}
	if helperErr != "" {
		return nil, errors.New(helperErr)
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return fd, nil
}

// OpenAsIdentity implements the "forks a short-lived helper that sets
// identity and then performs the open, communicating the resulting
// descriptor back" clause of open() for uid/gid mismatches (§4.5). The
// helper is this same binary, re-invoked with HelperReexecEnv set; it
// calls HelperMain, which performs setgid/setuid then the requested
// syscall, and passes the resulting fd back over a unix socketpair via
// SCM_RIGHTS.
func OpenAsIdentity(path string, osFlags int, permissions os.FileMode, uid, gid uint32) (*os.File, error) {
	fd, err := runHelper("open", path, osFlags, permissions, uid, gid)
	if err != nil {
		return nil, apierrors.WithDetail(apierrors.AccessDenied, "file.open", err.Error())
	}
	return fd, nil
}

// CreateDirAsIdentity is create()'s equivalent of OpenAsIdentity: the
// helper drops to uid/gid and performs the same recursive/exclusive
// directory creation performCreate does, reporting only success or
// failure back (there is no fd to pass for a mkdir).
func CreateDirAsIdentity(path string, flags Flags, permissions os.FileMode, uid, gid uint32) error {
	_, err := runHelper("mkdir", path, int(flags), permissions, uid, gid)
	if err != nil {
		return apierrors.WithDetail(apierrors.AccessDenied, "directory.create", err.Error())
	}
	return nil
}

// socketpair returns a connected pair of unix sockets usable for SCM_RIGHTS
// fd passing: parent keeps one end, child inherits the other as fd 3
// (the first entry in cmd.ExtraFiles).
func socketpair() (*os.File, *os.File, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}
	return os.NewFile(uintptr(fds[0]), "identity-helper-parent"),
		os.NewFile(uintptr(fds[1]), "identity-helper-child"), nil
}

// recvFD reads a single control message containing either a passed fd
// (success) or a plain-text error string (helper-side failure).
func recvFD(f *os.File) (*os.File, string, error) {
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, "", err
	}
	defer conn.Close()
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, "", fmt.Errorf("not a unix socket")
	}

	buf := make([]byte, 256)
	oob := make([]byte, unix.CmsgSpace(4))
	n, oobn, _, _, err := unixConn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, "", err
	}
	if oobn == 0 {
		if string(buf[:n]) == okMarker {
			return nil, "", nil
		}
		return nil, string(buf[:n]), nil
	}
	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, "", err
	}
	fds, err := unix.ParseUnixRights(&scms[0])
	if err != nil || len(fds) == 0 {
		return nil, "", fmt.Errorf("no fd received from identity helper")
	}
	return os.NewFile(uintptr(fds[0]), "identity-switched-fd"), "", nil
}

// HelperMain is the re-exec'd helper's entry point (called by cmd/helper.go
// when HelperReexecEnv is set): it reads the single open() request off fd
// 3, drops privileges to the requested identity, performs the open, and
// sends the resulting descriptor (or a plain-text failure) back over the
// same socket. Exactly one request is served per process, matching
// OpenAsIdentity's one-shot re-exec.
func HelperMain() int {
	sock := os.NewFile(3, "identity-helper-child")
	conn, err := net.FileConn(sock)
	if err != nil {
		fmt.Fprintln(os.Stderr, "identity helper:", err)
		return 1
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		fmt.Fprintln(os.Stderr, "identity helper: fd 3 is not a unix socket")
		return 1
	}

	buf := make([]byte, 1024)
	n, err := unixConn.Read(buf)
	unixConn.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "identity helper: read request:", err)
		return 1
	}

	parts := strings.Split(string(buf[:n]), "\x00")
	if len(parts) != 6 {
		sendFD(sock, -1, "malformed identity helper request")
		return 1
	}
	action := parts[0]
	path := parts[1]
	flags, err1 := strconv.Atoi(parts[2])
	perm, err2 := strconv.ParseUint(parts[3], 10, 32)
	uid, err3 := strconv.ParseUint(parts[4], 10, 32)
	gid, err4 := strconv.ParseUint(parts[5], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		sendFD(sock, -1, "malformed identity helper request fields")
		return 1
	}

	if err := unix.Setgroups(nil); err != nil {
		sendFD(sock, -1, fmt.Sprintf("setgroups: %v", err))
		return 1
	}
	if err := unix.Setregid(int(gid), int(gid)); err != nil {
		sendFD(sock, -1, fmt.Sprintf("setregid: %v", err))
		return 1
	}
	if err := unix.Setreuid(int(uid), int(uid)); err != nil {
		sendFD(sock, -1, fmt.Sprintf("setreuid: %v", err))
		return 1
	}

	switch action {
	case "mkdir":
		if err := performCreate(path, Flags(flags), os.FileMode(perm)); err != nil {
			sendFD(sock, -1, err.Error())
			return 1
		}
		if err := sendFD(sock, -1, ""); err != nil {
			fmt.Fprintln(os.Stderr, "identity helper: send result:", err)
			return 1
		}
		return 0
	default:
		f, err := os.OpenFile(path, flags, os.FileMode(perm))
		if err != nil {
			sendFD(sock, -1, err.Error())
			return 1
		}
		defer f.Close()

		if err := sendFD(sock, int(f.Fd()), ""); err != nil {
			fmt.Fprintln(os.Stderr, "identity helper: send fd:", err)
			return 1
		}
		return 0
	}
}

// okMarker is what a fd-less success (the mkdir action) sends back: a
// plain-text reply distinct from both a real error string and the empty
// string, so recvFD can tell "succeeded, nothing to pass" apart from
// "failed with an empty message".
const okMarker = "\x01OK"

// sendFD is the helper-side half: it sends the successfully opened fd, a
// bare success acknowledgement (fd < 0, no error), or a plain error
// string, back to the parent over sock.
func sendFD(sock *os.File, fd int, helperErr string) error {
	conn, err := net.FileConn(sock)
	if err != nil {
		return err
	}
	defer conn.Close()
	unixConn := conn.(*net.UnixConn)

	if helperErr != "" {
		_, err := unixConn.Write([]byte(helperErr))
		return err
	}
	if fd < 0 {
		_, err := unixConn.Write([]byte(okMarker))
		return err
	}
	rights := unix.UnixRights(fd)
	_, _, err = unixConn.WriteMsgUnix(nil, rights, nil)
	return err
}
