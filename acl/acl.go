// Package acl grants a user directory access by writing the POSIX ACL
// access and default extended attributes directly, the same thing the
// original daemon's acl_add_user() did through libacl's acl_set_file().
// No ACL binding appears anywhere in the example pack, so this talks to
// the kernel's system.posix_acl_access/system.posix_acl_default xattrs
// in their documented binary layout through golang.org/x/sys/unix, the
// wired low-level dependency, rather than shelling out to setfacl(1) or
// vendoring a libacl cgo binding.
package acl

import (
	"encoding/binary"
	"fmt"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	xattrAccess  = "system.posix_acl_access"
	xattrDefault = "system.posix_acl_default"

	eaVersion = 0x0002

	tagUserObj  = 0x01
	tagUser     = 0x02
	tagGroupObj = 0x04
	tagGroup    = 0x08
	tagMask     = 0x10
	tagOther    = 0x20

	permRead    = 0x04
	permWrite   = 0x02
	permExecute = 0x01

	undefinedID = 0xffffffff
)

type entry struct {
	tag  uint16
	perm uint16
	id   uint32
}

func parsePermissions(s string) uint16 {
	var p uint16
	if strings.ContainsRune(s, 'r') {
		p |= permRead
	}
	if strings.ContainsRune(s, 'w') {
		p |= permWrite
	}
	if strings.ContainsRune(s, 'x') {
		p |= permExecute
	}
	return p
}

func decode(data []byte) ([]entry, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("acl: short xattr value")
	}
	if version := binary.LittleEndian.Uint32(data[:4]); version != eaVersion {
		return nil, fmt.Errorf("acl: unsupported xattr version %d", version)
	}
	rest := data[4:]
	if len(rest)%8 != 0 {
		return nil, fmt.Errorf("acl: malformed xattr entries")
	}
	entries := make([]entry, 0, len(rest)/8)
	for i := 0; i < len(rest); i += 8 {
		entries = append(entries, entry{
			tag:  binary.LittleEndian.Uint16(rest[i : i+2]),
			perm: binary.LittleEndian.Uint16(rest[i+2 : i+4]),
			id:   binary.LittleEndian.Uint32(rest[i+4 : i+8]),
		})
	}
	return entries, nil
}

func encode(entries []entry) []byte {
	buf := make([]byte, 4+8*len(entries))
	binary.LittleEndian.PutUint32(buf[:4], eaVersion)
	for i, e := range entries {
		off := 4 + i*8
		binary.LittleEndian.PutUint16(buf[off:off+2], e.tag)
		binary.LittleEndian.PutUint16(buf[off+2:off+4], e.perm)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.id)
	}
	return buf
}

// calcMask recomputes the ACL_MASK entry as the union of every named
// user/group entry's permissions and the owning group's (ACL_GROUP_OBJ)
// permissions, the same thing acl_calc_mask() does:
// the mask caps what ACL_USER/ACL_GROUP/ACL_GROUP_OBJ entries can
// actually grant.
func calcMask(entries []entry) []entry {
	var union uint16
	haveNamed := false
	maskIdx := -1
	for i, e := range entries {
		switch e.tag {
		case tagUser, tagGroup:
			union |= e.perm
			haveNamed = true
		case tagGroupObj:
			union |= e.perm
		case tagMask:
			maskIdx = i
		}
	}
	if !haveNamed {
		return entries
	}
	if maskIdx >= 0 {
		entries[maskIdx].perm = union
		return entries
	}
	return append(entries, entry{tag: tagMask, perm: union, id: undefinedID})
}

// AddUser grants username the given rwx permissions (any subset, in any
// order, e.g. "rw" or "rx") on directory, replacing any ACL_USER entry
// already present for that user. It rewrites both the access and default
// ACLs, matching acl_add_user()'s "new default ACL follows the new access
// ACL" behavior so files later created under directory inherit the grant.
func AddUser(directory, username, permissions string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return fmt.Errorf("acl: lookup user %q: %w", username, err)
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return fmt.Errorf("acl: parse uid for %q: %w", username, err)
	}

	buf := make([]byte, 4096)
	n, err := unix.Lgetxattr(directory, xattrAccess, buf)
	if err != nil {
		return fmt.Errorf("acl: read %s: %w", xattrAccess, err)
	}
	entries, err := decode(buf[:n])
	if err != nil {
		return err
	}

	filtered := entries[:0]
	for _, e := range entries {
		if e.tag == tagUser && e.id == uint32(uid) {
			continue
		}
		filtered = append(filtered, e)
	}
	filtered = append(filtered, entry{tag: tagUser, perm: parsePermissions(permissions), id: uint32(uid)})
	filtered = calcMask(filtered)

	encoded := encode(filtered)
	if err := unix.Lsetxattr(directory, xattrAccess, encoded, 0); err != nil {
		return fmt.Errorf("acl: write %s: %w", xattrAccess, err)
	}
	if err := unix.Lsetxattr(directory, xattrDefault, encoded, 0); err != nil {
		return fmt.Errorf("acl: write %s: %w", xattrDefault, err)
	}
	return nil
}
