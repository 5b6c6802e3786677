// Package inventory implements the per-type object tables, id allocation,
// and stock-string interning described in spec §4.1. It is the daemon's
// single source of truth for "what objects currently exist".
package inventory

import (
	"fmt"
	"sort"

	multierror "github.com/hashicorp/go-multierror"

	apierrors "redapid/errors"
	"redapid/logging"
	"redapid/object"
)

// NewStockStringFunc constructs and registers a permanently locked,
// interned String for the given bytes; the lock is its only internal
// reference, and StockString adds the caller's. It is supplied by the
// value package at composition time to avoid inventory depending on the
// concrete String type.
type NewStockStringFunc func(t *Table, data []byte) (object.Object, error)

// Table is the inventory: one shared 16-bit id space (§3), a table per
// object.Kind, and the stock string pool.
type Table struct {
	objects map[uint16]object.Object
	byKind  map[object.Kind]map[uint16]object.Object
	nextID  uint16

	stockStrings   map[string]uint16
	newStockString NewStockStringFunc
}

// NewTable creates an empty inventory. newStockString may be nil if the
// caller never intends to call StockString (e.g. in unit tests of other
// components).
func NewTable(newStockString NewStockStringFunc) *Table {
	byKind := make(map[object.Kind]map[uint16]object.Object, 6)
	for _, k := range object.TeardownOrder {
		byKind[k] = make(map[uint16]object.Object)
	}
	return &Table{
		objects:        make(map[uint16]object.Object),
		byKind:         byKind,
		nextID:         1,
		stockStrings:   make(map[string]uint16),
		newStockString: newStockString,
	}
}

// Add registers o under the id it already carries (an id obtained from
// Reserve, which rotates through 1..65535 skipping ids in use). The caller is expected to have constructed o with
// this exact id already set via object.NewBase — Add merely validates and
// indexes it; ids are reserved by calling Table.Reserve beforehand.
func (t *Table) Add(o object.Object) error {
	id := o.ID()
	if id == 0 {
		return apierrors.New(apierrors.NoFreeObjectID, "inventory.add")
	}
	if _, exists := t.objects[id]; exists {
		return apierrors.WithDetail(apierrors.InternalError, "inventory.add",
			fmt.Sprintf("id %d already registered", id))
	}
	t.objects[id] = o
	t.byKind[o.Kind()][id] = o
	return nil
}

// Reserve allocates the next free 16-bit id without registering any object
// yet. Object constructors call this first (they need the id to build the
// object itself), then Add once the object exists.
func (t *Table) Reserve() (uint16, error) {
	if len(t.objects) >= 65535 {
		return 0, apierrors.New(apierrors.NoFreeObjectID, "inventory.reserve")
	}
	start := t.nextID
	for {
		id := t.nextID
		t.nextID++
		if t.nextID == 0 {
			t.nextID = 1 // 0 is reserved to mean "absent"
		}
		if _, exists := t.objects[id]; !exists {
			return id, nil
		}
		if t.nextID == start {
			return 0, apierrors.New(apierrors.NoFreeObjectID, "inventory.reserve")
		}
	}
}

// Remove is purely bookkeeping: the caller (object.Base, via maybeDestroy)
// has already determined the object is dead.
func (t *Table) Remove(o object.Object) {
	delete(t.objects, o.ID())
	delete(t.byKind[o.Kind()], o.ID())
}

// Get resolves id to an object, optionally constrained to kind. Passing
// object.AnyKind matches any type. If the id resolves to a different type
// than requested, it is treated as not found, per §4.1.
func (t *Table) Get(kind object.Kind, id uint16) (object.Object, error) {
	if id == 0 {
		return nil, apierrors.New(apierrors.UnknownObjectID, "inventory.get")
	}
	if kind == object.AnyKind {
		o, ok := t.objects[id]
		if !ok {
			return nil, apierrors.New(apierrors.UnknownObjectID, "inventory.get")
		}
		return o, nil
	}
	o, ok := t.byKind[kind][id]
	if !ok {
		return nil, apierrors.New(apierrors.UnknownObjectID, "inventory.get")
	}
	return o, nil
}

// Count returns the number of live objects of the given kind.
func (t *Table) Count(kind object.Kind) int {
	return len(t.byKind[kind])
}

// LiveIDs returns every currently live id of the given kind, in no
// particular order. Used by the dispatcher's object-table enumeration
// (next_entry/rewind).
func (t *Table) LiveIDs(kind object.Kind) []uint16 {
	ids := make([]uint16, 0, len(t.byKind[kind]))
	for id := range t.byKind[kind] {
		ids = append(ids, id)
	}
	return ids
}

// StockString returns an interned, permanently locked String for data,
// adding one internal reference for the caller. Equal byte sequences
// return the same object (§4.1).
func (t *Table) StockString(data []byte) (object.Object, error) {
	if id, ok := t.stockStrings[string(data)]; ok {
		o, ok := t.objects[id]
		if !ok {
			delete(t.stockStrings, string(data))
		} else {
			o.AddInternalRef()
			return o, nil
		}
	}
	if t.newStockString == nil {
		return nil, apierrors.New(apierrors.InternalError, "inventory.stock_string")
	}
	o, err := t.newStockString(t, data)
	if err != nil {
		return nil, err
	}
	o.AddInternalRef()
	t.stockStrings[string(data)] = o.ID()
	return o, nil
}

// ReleaseStockStrings releases the interning pool's own internal reference
// on every stock string. Called during shutdown teardown, step 2 of §4.1.
func (t *Table) ReleaseStockStrings() error {
	var errs error
	for literal, id := range t.stockStrings {
		o, ok := t.objects[id]
		if !ok {
			continue
		}
		if err := o.RemoveInternalRef(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("stock string %q: %w", literal, err))
		}
	}
	t.stockStrings = make(map[string]uint16)
	return errs
}

// Teardown runs the fixed shutdown sweep of §4.1: sessions must already
// have been destroyed by the caller (inventory doesn't own the session
// list), stock strings released, then each kind in TeardownOrder is force-
// destroyed. Any object still present after its kind's sweep indicates a
// leak: it is logged and forcibly removed, never silently dropped.
func (t *Table) Teardown(forceDestroy func(object.Object)) error {
	var errs error
	if err := t.ReleaseStockStrings(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, kind := range object.TeardownOrder {
		ids := make([]uint16, 0, len(t.byKind[kind]))
		for id := range t.byKind[kind] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			o, ok := t.byKind[kind][id]
			if !ok {
				continue
			}
			logging.Error("object survived teardown sweep, forcing destruction",
				"object_id", id, "object_kind", kind.String())
			errs = multierror.Append(errs, fmt.Errorf("leaked %s object %d", kind, id))
			forceDestroy(o)
			t.Remove(o)
		}
	}
	return errs
}
