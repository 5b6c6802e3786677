// Package vfs implements the File and Directory object types (spec §4.5):
// thin wrappers around non-blocking OS file descriptors, with uid/gid
// switching handled by a forked helper when the caller's identity differs
// from the request.
package vfs

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	apierrors "redapid/errors"
	"redapid/inventory"
	"redapid/object"
	"redapid/value"
)

// Subtype is the closed set of File subtypes (§3).
type Subtype uint8

const (
	SubtypeRegular Subtype = iota
	SubtypePipe
	SubtypeSymlinkUnused
	SubtypeSocket
)

// Flags is the peer-facing open() flag bitmask, translated to OS O_* bits.
type Flags uint32

const (
	FlagReadOnly  Flags = 1 << 0
	FlagWriteOnly Flags = 1 << 1
	FlagReadWrite Flags = 1 << 2
	FlagAppend    Flags = 1 << 3
	FlagCreate    Flags = 1 << 4
	FlagExclusive Flags = 1 << 5
	FlagNonBlock  Flags = 1 << 6
	FlagTruncate  Flags = 1 << 7
	FlagTemporary Flags = 1 << 8 // accepted but not acted on: Open does not unlink the file
	// RECURSIVE/EXCLUSIVE for Directory.Create reuse this bit space.
	FlagRecursive Flags = 1 << 9
)

func (f Flags) toOSFlags() int {
	osFlags := unix.O_NONBLOCK | unix.O_CLOEXEC
	switch {
	case f&FlagReadWrite != 0:
		osFlags |= os.O_RDWR
	case f&FlagWriteOnly != 0:
		osFlags |= os.O_WRONLY
	default:
		osFlags |= os.O_RDONLY
	}
	if f&FlagAppend != 0 {
		osFlags |= os.O_APPEND
	}
	if f&FlagCreate != 0 {
		osFlags |= os.O_CREATE
	}
	if f&FlagExclusive != 0 {
		osFlags |= os.O_EXCL
	}
	if f&FlagTruncate != 0 {
		osFlags |= os.O_TRUNC
	}
	return osFlags
}

// ReadChunkSize and WriteChunkSize are the fixed wire windows for
// synchronous read/write (§6): read ≤ 62 bytes, write ≤ 61 bytes.
const (
	ReadChunkSize  = 62
	WriteChunkSize = 61
)

// AsyncReadChunkSize is the fixed window read_async delivers per callback
// (§6's AsyncFileReadCallback payload), distinct from the 62-byte
// synchronous read window because the callback payload also carries a
// file id and an error code.
const AsyncReadChunkSize = 60

// AsyncReadFunc delivers one read_async chunk: data is the bytes read
// (empty on a terminal chunk that carries no trailing data), code is
// Success for a chunk with more to follow or the terminal reason
// (NoMoreData, or whatever the underlying read failed with) that ends
// the read.
type AsyncReadFunc func(f *File, data []byte, code apierrors.Code)

type asyncChunk struct {
	data []byte
	code apierrors.Code
}

// asyncReadOp tracks one in-progress read_async (§5): the pump goroutine
// appends chunks under mu as it reads them; the reactor, woken by one
// byte per chunk on asyncPipeW, drains them on the main loop. aborted
// lets abort_async_read stop the goroutine between reads without
// synchronizing on anything but this flag.
type asyncReadOp struct {
	mu      sync.Mutex
	chunks  []asyncChunk
	aborted bool
}

// File wraps a non-blocking OS descriptor plus the name String it holds a
// lock on (anonymous pipes have no name).
type File struct {
	*object.Base
	subtype Subtype
	flags   Flags
	fd      *os.File
	name    *value.String // nil for anonymous pipes

	asyncPipeR   *os.File // auxiliary pipe used to deliver async-read chunks
	asyncPipeW   *os.File
	asyncOp      *asyncReadOp
	asyncOnChunk AsyncReadFunc
}

// Open implements open(name_id, flags, permissions, uid, gid) -> File. When
// the caller's identity matches uid/gid exactly, the open happens
// in-process; otherwise it forks the identity helper (OpenAsIdentity),
// which assumes the requested identity before performing the same open
// and passes the resulting descriptor back over a unix socket.
func Open(inv *inventory.Table, name *value.String, flags Flags, permissions os.FileMode, uid, gid uint32) (*File, error) {
	path := string(name.Bytes())
	osFlags := flags.toOSFlags()

	var osFile *os.File
	if identityMatches(uid, gid) {
		f, err := os.OpenFile(path, osFlags, permissions)
		if err != nil {
			return nil, apierrors.WrapErrno(err, "file.open")
		}
		osFile = f
	} else {
		f, err := OpenAsIdentity(path, osFlags, permissions, uid, gid)
		if err != nil {
			return nil, err
		}
		osFile = f
	}

	id, err := inv.Reserve()
	if err != nil {
		osFile.Close()
		return nil, err
	}
	f := &File{subtype: SubtypeRegular, flags: flags, fd: osFile, name: name}
	f.Base = object.NewBase(id, object.KindFile, inv, f.release)
	if err := inv.Add(f); err != nil {
		osFile.Close()
		return nil, err
	}

	name.AddInternalRef()
	name.Lock()
	return f, nil
}

// NewPipe wraps an already-created anonymous pipe end (no name String).
func NewPipe(inv *inventory.Table, fd *os.File) (*File, error) {
	id, err := inv.Reserve()
	if err != nil {
		return nil, err
	}
	f := &File{subtype: SubtypePipe, fd: fd}
	f.Base = object.NewBase(id, object.KindFile, inv, f.release)
	if err := inv.Add(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Subtype reports which of the four File kinds this is.
func (f *File) Subtype() Subtype { return f.subtype }

// Name returns the locked name String this File holds a reference to, or
// nil for anonymous pipes.
func (f *File) Name() *value.String { return f.name }

// Fd exposes the raw descriptor for the reactor to register for readiness.
func (f *File) Fd() uintptr { return f.fd.Fd() }

// Read implements read(length <= 62): a single non-blocking read. Reading
// zero bytes maps to NO_MORE_DATA, per §4.5.
func (f *File) Read(length int) ([]byte, error) {
	if length > ReadChunkSize {
		length = ReadChunkSize
	}
	buf := make([]byte, length)
	n, err := f.fd.Read(buf)
	if n == 0 && err != nil {
		return nil, apierrors.New(apierrors.NoMoreData, "file.read")
	}
	if n == 0 {
		return nil, apierrors.New(apierrors.NoMoreData, "file.read")
	}
	return buf[:n], nil
}

// Write implements write(length <= 61): a single non-blocking write.
func (f *File) Write(data []byte) (int, error) {
	if len(data) > WriteChunkSize {
		data = data[:WriteChunkSize]
	}
	n, err := f.fd.Write(data)
	if err != nil {
		return n, apierrors.WrapErrno(err, "file.write")
	}
	return n, nil
}

// StartAsyncRead implements read_async(total_length) (§5): it opens the
// auxiliary wake pipe on first use and spawns a pump goroutine that reads
// totalLength bytes in AsyncReadChunkSize windows, queuing each one for
// onChunk to receive once the reactor drains the wake pipe. Only one
// read_async may be in progress per File at a time.
func (f *File) StartAsyncRead(totalLength uint32, onChunk AsyncReadFunc) error {
	if f.asyncOp != nil {
		return apierrors.New(apierrors.InvalidOperation, "file.read_async")
	}
	if f.asyncPipeR == nil {
		r, w, err := os.Pipe()
		if err != nil {
			return apierrors.WrapErrno(err, "file.read_async")
		}
		if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
			r.Close()
			w.Close()
			return apierrors.WrapErrno(err, "file.read_async")
		}
		f.asyncPipeR, f.asyncPipeW = r, w
	}

	op := &asyncReadOp{}
	f.asyncOp = op
	f.asyncOnChunk = onChunk
	go f.pumpAsyncRead(op, totalLength)
	return nil
}

// AsyncReadFd exposes the wake pipe's read end for reactor registration.
func (f *File) AsyncReadFd() uintptr { return f.asyncPipeR.Fd() }

// pumpAsyncRead is the per-file async-read source §5 describes: it runs
// on its own goroutine, reading fixed windows from the underlying
// descriptor (blocking the goroutine, never the reactor), queuing each
// one and waking the main loop with a single byte per chunk queued. The
// last chunk delivered carries NoMoreData when totalLength was satisfied
// or the read hit genuine EOF first, and the read's error code when the
// read failed, matching the chunk count/ordering Testable Property 3 requires.
func (f *File) pumpAsyncRead(op *asyncReadOp, remaining uint32) {
	for remaining > 0 {
		op.mu.Lock()
		aborted := op.aborted
		op.mu.Unlock()
		if aborted {
			return
		}

		size := remaining
		if size > AsyncReadChunkSize {
			size = AsyncReadChunkSize
		}
		buf := make([]byte, size)
		n, err := f.fd.Read(buf)
		remaining -= uint32(n)

		code := apierrors.Success
		switch {
		case err != nil && err != io.EOF:
			code = apierrors.CodeOf(apierrors.WrapErrno(err, "file.read_async"))
		case err == io.EOF || n == 0:
			code = apierrors.NoMoreData
		case remaining == 0:
			code = apierrors.NoMoreData
		}

		op.mu.Lock()
		if op.aborted {
			op.mu.Unlock()
			return
		}
		op.chunks = append(op.chunks, asyncChunk{data: buf[:n], code: code})
		op.mu.Unlock()
		f.asyncPipeW.Write([]byte{1})

		if code != apierrors.Success {
			return
		}
	}
}

// DrainAsyncRead is called by the reactor when the async-read wake pipe
// becomes readable: it empties the wake bytes, delivers every chunk
// queued since the last drain in order, and reports whether the read has
// finished so the reactor can unregister the wake pipe.
func (f *File) DrainAsyncRead() bool {
	drainWakePipe(f.asyncPipeR)

	op := f.asyncOp
	if op == nil {
		return true
	}
	op.mu.Lock()
	chunks := op.chunks
	op.chunks = nil
	op.mu.Unlock()

	done := false
	for _, c := range chunks {
		if f.asyncOnChunk != nil {
			f.asyncOnChunk(f, c.data, c.code)
		}
		if c.code != apierrors.Success {
			done = true
		}
	}
	if done {
		f.asyncOp = nil
	}
	return done
}

// AbortAsyncRead implements abort_async_read (§5): idempotent. It stops
// the pump goroutine before its next read and drains the wake pipe, but
// still delivers any chunk the goroutine had already queued before the
// abort arrived.
func (f *File) AbortAsyncRead() {
	op := f.asyncOp
	if op == nil {
		return
	}
	op.mu.Lock()
	op.aborted = true
	chunks := op.chunks
	op.chunks = nil
	op.mu.Unlock()

	drainWakePipe(f.asyncPipeR)
	for _, c := range chunks {
		if f.asyncOnChunk != nil {
			f.asyncOnChunk(f, c.data, c.code)
		}
	}
	f.asyncOp = nil
}

// drainWakePipe empties a non-blocking wake pipe's read end, the same
// drain the reactor's own self-pipe uses for Post's job queue.
func drainWakePipe(r *os.File) {
	if r == nil {
		return
	}
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(int(r.Fd()), buf)
		if n <= 0 || err != nil {
			return
		}
		if n < len(buf) {
			return
		}
	}
}

// SeekOrigin mirrors the standard whence values.
type SeekOrigin int

const (
	SeekSet SeekOrigin = iota
	SeekCurrent
	SeekEnd
)

// SetPosition implements set_position(offset, origin); pipes report
// INVALID_SEEK, matching standard seek semantics on a non-seekable fd.
func (f *File) SetPosition(offset int64, origin SeekOrigin) (int64, error) {
	if f.subtype == SubtypePipe {
		return 0, apierrors.New(apierrors.InvalidSeek, "file.set_position")
	}
	pos, err := f.fd.Seek(offset, int(origin))
	if err != nil {
		return 0, apierrors.WrapErrno(err, "file.set_position")
	}
	return pos, nil
}

// GetPosition implements get_position.
func (f *File) GetPosition() (int64, error) {
	if f.subtype == SubtypePipe {
		return 0, apierrors.New(apierrors.InvalidSeek, "file.get_position")
	}
	pos, err := f.fd.Seek(0, int(SeekCurrent))
	if err != nil {
		return 0, apierrors.WrapErrno(err, "file.get_position")
	}
	return pos, nil
}

// Info is the result of lookup_info/stat: type/permissions/uid/gid/length
// plus the three standard timestamps, returned without opening the file.
type Info struct {
	IsDirectory bool
	IsSymlink   bool
	Permissions os.FileMode
	UID, GID    uint32
	Length      int64
	AccessTime  int64
	ModifyTime  int64
	ChangeTime  int64
}

// LookupInfo implements lookup_info(name_id, follow_symlink). The caller
// resolves name_id to its String and passes the decoded path; LookupInfo
// itself is a pure stat wrapper with no object/inventory dependency.
func LookupInfo(path string, followSymlink bool) (Info, error) {
	var st unix.Stat_t
	var err error
	if followSymlink {
		err = unix.Stat(path, &st)
	} else {
		err = unix.Lstat(path, &st)
	}
	if err != nil {
		return Info{}, apierrors.WrapErrno(err, "file.lookup_info")
	}
	return Info{
		IsDirectory: st.Mode&unix.S_IFMT == unix.S_IFDIR,
		IsSymlink:   st.Mode&unix.S_IFMT == unix.S_IFLNK,
		Permissions: os.FileMode(st.Mode & 0o7777),
		UID:         st.Uid,
		GID:         st.Gid,
		Length:      st.Size,
		AccessTime:  int64(st.Atim.Sec),
		ModifyTime:  int64(st.Mtim.Sec),
		ChangeTime:  int64(st.Ctim.Sec),
	}, nil
}

// SymlinkTarget implements symlink_target(name_id, canonicalize): a
// one-level readlink, or a full realpath when canonicalize is set.
func SymlinkTarget(path string, canonicalize bool) (string, error) {
	if canonicalize {
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", apierrors.WrapErrno(err, "file.symlink_target")
		}
		return real, nil
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", apierrors.WrapErrno(err, "file.symlink_target")
	}
	return target, nil
}

func (f *File) release() {
	if f.asyncOp != nil {
		f.asyncOp.mu.Lock()
		f.asyncOp.aborted = true
		f.asyncOp.mu.Unlock()
	}
	if f.asyncPipeR != nil {
		f.asyncPipeR.Close()
	}
	if f.asyncPipeW != nil {
		f.asyncPipeW.Close()
	}
	if f.fd != nil {
		f.fd.Close()
	}
	if f.name != nil {
		f.name.Unlock()
		f.name.RemoveInternalRef()
	}
}
