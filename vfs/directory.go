package vfs

import (
	"os"
	"path/filepath"
	"strings"

	apierrors "redapid/errors"
	"redapid/inventory"
	"redapid/object"
	"redapid/value"
)

// Directory is an open directory stream, its absolute name (locked), and a
// reusable path-assembly buffer used by NextEntry to build full child
// paths without re-allocating on every call.
type Directory struct {
	*object.Base
	name    *value.String
	handle  *os.File
	entries []os.DirEntry
	cursor  int

	pathBuf strings.Builder
}

// Open implements Directory.open(name_id): requires an absolute path.
func Open(inv *inventory.Table, name *value.String) (*Directory, error) {
	path := string(name.Bytes())
	if !filepath.IsAbs(path) {
		return nil, apierrors.New(apierrors.InvalidParameter, "directory.open")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.WrapErrno(err, "directory.open")
	}
	entries, err := f.ReadDir(-1)
	if err != nil {
		f.Close()
		return nil, apierrors.WrapErrno(err, "directory.open")
	}

	id, err := inv.Reserve()
	if err != nil {
		f.Close()
		return nil, err
	}
	d := &Directory{name: name, handle: f, entries: entries}
	d.Base = object.NewBase(id, object.KindDirectory, inv, d.release)
	if err := inv.Add(d); err != nil {
		f.Close()
		return nil, err
	}
	name.AddInternalRef()
	name.Lock()
	return d, nil
}

// EntryType mirrors the type tag next_entry reports, falling back to a
// typed lstat when the directory stream itself doesn't carry a type.
type EntryType uint8

const (
	EntryUnknown EntryType = iota
	EntryRegular
	EntryDirectory
	EntrySymlink
	EntryOther
)

// Entry is one result from NextEntry.
type Entry struct {
	Name string
	Type EntryType
}

// NextEntry implements next_entry: skips "." and "..", returns
// NO_MORE_DATA at end. When the underlying DirEntry can't report a type
// (DT_UNKNOWN, as some filesystems return), it falls back to an Lstat.
func (d *Directory) NextEntry() (Entry, error) {
	for d.cursor < len(d.entries) {
		e := d.entries[d.cursor]
		d.cursor++
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		return Entry{Name: e.Name(), Type: d.entryType(e)}, nil
	}
	return Entry{}, apierrors.New(apierrors.NoMoreData, "directory.next_entry")
}

// Rewind implements directory.rewind: resets the enumeration cursor back
// to the first entry without re-reading the directory stream.
func (d *Directory) Rewind() { d.cursor = 0 }

// Name returns the locked absolute-path name String this Directory holds
// a reference to.
func (d *Directory) Name() *value.String { return d.name }

func (d *Directory) entryType(e os.DirEntry) EntryType {
	mode := e.Type()
	switch {
	case mode.IsRegular():
		return EntryRegular
	case mode.IsDir():
		return EntryDirectory
	case mode&os.ModeSymlink != 0:
		return EntrySymlink
	case mode != 0:
		return EntryOther
	}

	d.pathBuf.Reset()
	d.pathBuf.WriteString(string(d.name.Bytes()))
	d.pathBuf.WriteByte('/')
	d.pathBuf.WriteString(e.Name())
	info, err := LookupInfo(d.pathBuf.String(), false)
	if err != nil {
		return EntryUnknown
	}
	switch {
	case info.IsDirectory:
		return EntryDirectory
	case info.IsSymlink:
		return EntrySymlink
	default:
		return EntryRegular
	}
}

// CreateFlags mirrors the RECURSIVE/EXCLUSIVE bits from §4.5.
const (
	CreateRecursive = FlagRecursive
	CreateExclusive = FlagExclusive
)

// Create implements create(name, flags, permissions, uid, gid). When the
// caller's identity matches uid/gid exactly, creation happens in-process
// (performCreate); otherwise it forks the identity helper the same way
// File's Open does for a uid/gid mismatch (§4.5).
func Create(name string, flags Flags, permissions os.FileMode, uid, gid uint32) error {
	if identityMatches(uid, gid) {
		return performCreate(name, flags, permissions)
	}
	return CreateDirAsIdentity(name, flags, permissions, uid, gid)
}

// performCreate is the identity-agnostic implementation shared by Create
// (already the right identity) and the identity helper (after it has
// dropped to the requested uid/gid): recursive creation walks down from
// the first existing ancestor; non-recursive against a missing parent
// fails NOT_SUPPORTED; the target already existing fails ALREADY_EXISTS
// only when EXCLUSIVE is set.
func performCreate(name string, flags Flags, permissions os.FileMode) error {
	if flags&CreateRecursive != 0 {
		if err := os.MkdirAll(name, permissions); err != nil {
			return apierrors.WrapErrno(err, "directory.create")
		}
		return nil
	}

	parent := filepath.Dir(name)
	if _, err := os.Stat(parent); err != nil {
		return apierrors.New(apierrors.NotSupported, "directory.create")
	}
	err := os.Mkdir(name, permissions)
	if err != nil {
		if os.IsExist(err) {
			if flags&CreateExclusive != 0 {
				return apierrors.New(apierrors.AlreadyExists, "directory.create")
			}
			return nil
		}
		return apierrors.WrapErrno(err, "directory.create")
	}
	return nil
}

func (d *Directory) release() {
	if d.handle != nil {
		d.handle.Close()
	}
	if d.name != nil {
		d.name.Unlock()
		d.name.RemoveInternalRef()
	}
}
