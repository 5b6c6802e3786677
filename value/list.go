package value

import (
	"redapid/errors"
	"redapid/inventory"
	"redapid/object"
)

// MaxListLength is the largest number of items a List may hold (§4.4).
const MaxListLength = 65535

// List is an ordered sequence of object references, not raw ids: holding
// an item in a List keeps it alive (append takes add_internal_ref + lock;
// remove does the inverse).
type List struct {
	*object.Base
	items []object.Object
}

// NewList reserves a List of the given initial capacity (allocate()).
func NewList(inv *inventory.Table, reserve uint32) (*List, error) {
	if reserve > MaxListLength {
		return nil, errors.New(errors.InvalidParameter, "list.allocate")
	}
	id, err := inv.Reserve()
	if err != nil {
		return nil, err
	}
	l := &List{items: make([]object.Object, 0, reserve)}
	l.Base = object.NewBase(id, object.KindList, inv, l.releaseItems)
	if err := inv.Add(l); err != nil {
		return nil, err
	}
	return l, nil
}

// releaseItems is the list's onZero destructor: it unwinds the internal
// reference and lock every remaining item was holding, the same as an
// explicit Remove of each one, letting destruction cascade normally.
func (l *List) releaseItems() {
	items := l.items
	l.items = nil
	for _, item := range items {
		item.Unlock()
		item.RemoveInternalRef()
	}
}

// Length implements get_length.
func (l *List) Length() int { return len(l.items) }

// Append implements append(item_id): fails locked, fails NOT_SUPPORTED on
// self-append, fails on hitting the length limit. Appending takes an
// internal reference and a lock on the item.
func (l *List) Append(item object.Object) error {
	if l.LockCount() > 0 {
		return errors.New(errors.ObjectIsLocked, "list.append")
	}
	if item.ID() == l.ID() {
		return errors.New(errors.NotSupported, "list.append")
	}
	if len(l.items) >= MaxListLength {
		return errors.New(errors.OutOfRange, "list.append")
	}
	item.AddInternalRef()
	item.Lock()
	l.items = append(l.items, item)
	return nil
}

// Remove implements remove(index): the inverse of Append, releasing the
// lock and the internal reference it took.
func (l *List) Remove(index int) error {
	if l.LockCount() > 0 {
		return errors.New(errors.ObjectIsLocked, "list.remove")
	}
	if index < 0 || index >= len(l.items) {
		return errors.New(errors.OutOfRange, "list.remove")
	}
	item := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	if err := item.Unlock(); err != nil {
		return err
	}
	return item.RemoveInternalRef()
}

// GetItem implements get_item(index) -> (item_id, type). The caller is
// responsible for turning the returned object into an external reference
// via the requesting session, matching "adds one external reference".
func (l *List) GetItem(index int) (object.Object, error) {
	if index < 0 || index >= len(l.items) {
		return nil, errors.New(errors.OutOfRange, "list.get_item")
	}
	return l.items[index], nil
}

// Items exposes the live slice for iteration by the teardown sweep and
// tests; callers must not mutate it.
func (l *List) Items() []object.Object { return l.items }
