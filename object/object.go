// Package object defines the shared identity, refcount, and lock discipline
// that every inventory object (String, List, File, Directory, Process,
// Program) is built on. It generalizes the teacher's ContainerError-style
// "one shared base struct, typed wrappers on top" shape from a single
// container type to the six object kinds of the inventory.
package object

import (
	"fmt"

	apierrors "redapid/errors"
)

// Kind is the closed set of object types sharing the 16-bit id space.
type Kind uint8

const (
	KindString Kind = iota
	KindList
	KindFile
	KindDirectory
	KindProcess
	KindProgram
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindProcess:
		return "process"
	case KindProgram:
		return "program"
	default:
		return "unknown"
	}
}

// TeardownOrder is the fixed inventory sweep order from spec §4.1: it
// reflects the reference DAG (programs hold processes, processes hold
// files, lists hold items, items may be strings).
var TeardownOrder = []Kind{KindProgram, KindProcess, KindDirectory, KindFile, KindList, KindString}

// AnyKind is passed to Inventory.Get when the caller doesn't care which
// type an id resolves to.
const AnyKind Kind = 0xff

// Object is the interface every inventory entry implements. Concrete types
// (String, List, File, Directory, Process, Program) embed *Base and get
// this interface for free except for Destroy, which each type supplies to
// release the references it holds to other objects.
type Object interface {
	ID() uint16
	Kind() Kind
	InternalRefs() int
	ExternalRefs() int
	LockCount() int
	AddInternalRef()
	RemoveInternalRef() error
	AddExternalRef()
	RemoveExternalRef() error
	Lock()
	Unlock() error
	IsDestroyed() bool
}

// Remover is implemented by the inventory so Base can deregister itself
// the instant both refcounts reach zero, per §4.3's "MUST NOT defer
// destruction" ordering guarantee.
type Remover interface {
	Remove(o Object)
}

// Base implements the five reference/lock primitives of §4.2. It holds no
// mutex: per §5, the daemon is single-threaded and no object is touched
// from more than one goroutine (the lone exception, a process waiter
// thread, hands off through a pipe rather than touching the Process
// object directly).
type Base struct {
	id           uint16
	kind         Kind
	internalRefs int
	externalRefs int
	lockCount    int
	destroyed    bool

	inv     Remover
	onZero  func() // type-specific destructor; releases refs this object holds
}

// NewBase constructs a Base. onZero is invoked exactly once, the moment
// both refcounts reach zero, before the inventory is told to forget the id.
func NewBase(id uint16, kind Kind, inv Remover, onZero func()) *Base {
	return &Base{id: id, kind: kind, inv: inv, onZero: onZero}
}

func (b *Base) ID() uint16   { return b.id }
func (b *Base) Kind() Kind   { return b.kind }
func (b *Base) InternalRefs() int { return b.internalRefs }
func (b *Base) ExternalRefs() int { return b.externalRefs }
func (b *Base) LockCount() int    { return b.lockCount }
func (b *Base) IsDestroyed() bool { return b.destroyed }

// AddInternalRef implements §4.2's add_internal_ref: unconditional increment.
func (b *Base) AddInternalRef() {
	b.internalRefs++
}

// RemoveInternalRef implements remove_internal_ref: internal_refs > 0 is a
// precondition; invariant L1 may fire, destroying the object in place.
func (b *Base) RemoveInternalRef() error {
	if b.internalRefs <= 0 {
		return apierrors.WithDetail(apierrors.InternalError, "object.remove_internal_ref",
			fmt.Sprintf("object %d has no internal references to remove", b.id))
	}
	b.internalRefs--
	b.maybeDestroy()
	return nil
}

// AddExternalRef implements add_external_ref's effect on the object side;
// the session-level tally (who owns how many) lives in package session,
// which is the sole caller of this method — see session.Session.Track.
func (b *Base) AddExternalRef() {
	b.externalRefs++
}

// RemoveExternalRef implements remove_external_ref's effect on the object
// side. The (object,session) tally>0 precondition is checked by the caller
// (session.Session), which owns that bookkeeping per §3's data model.
func (b *Base) RemoveExternalRef() error {
	if b.externalRefs <= 0 {
		return apierrors.WithDetail(apierrors.InternalError, "object.remove_external_ref",
			fmt.Sprintf("object %d has no external references to remove", b.id))
	}
	b.externalRefs--
	b.maybeDestroy()
	return nil
}

// Lock implements lock(o): invariant L2 requires every lock_count increment
// be paired with an internal_refs increment, so locking also keeps the
// object alive.
func (b *Base) Lock() {
	b.lockCount++
	b.internalRefs++
}

// Unlock implements unlock(o): the inverse of Lock, observing L2.
func (b *Base) Unlock() error {
	if b.lockCount <= 0 {
		return apierrors.WithDetail(apierrors.InternalError, "object.unlock",
			fmt.Sprintf("object %d is not locked", b.id))
	}
	b.lockCount--
	return b.RemoveInternalRef()
}

// Release is the peer-facing operation from §4.2: permitted only when the
// object currently has external references at all.
func (b *Base) Release() error {
	if b.externalRefs <= 0 {
		return apierrors.New(apierrors.InvalidOperation, "object.release")
	}
	return nil
}

func (b *Base) maybeDestroy() {
	if b.destroyed {
		return
	}
	if b.internalRefs == 0 && b.externalRefs == 0 {
		b.destroyed = true
		if b.onZero != nil {
			b.onZero()
		}
		if b.inv != nil {
			b.inv.Remove(b)
		}
	}
}
