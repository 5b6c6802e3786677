package inventory

import (
	"testing"

	"redapid/object"
)

type fakeObj struct {
	*object.Base
}

func newFake(t *Table, kind object.Kind) (*fakeObj, error) {
	id, err := t.Reserve()
	if err != nil {
		return nil, err
	}
	f := &fakeObj{}
	f.Base = object.NewBase(id, kind, t, nil)
	if err := t.Add(f); err != nil {
		return nil, err
	}
	return f, nil
}

func TestReserveAndAdd(t *testing.T) {
	tbl := NewTable(nil)
	f, err := newFake(tbl, object.KindString)
	if err != nil {
		t.Fatalf("newFake: %v", err)
	}
	if f.ID() == 0 {
		t.Error("expected nonzero id")
	}
	got, err := tbl.Get(object.KindString, f.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != f {
		t.Error("Get returned a different object")
	}
}

func TestGetUnknownID(t *testing.T) {
	tbl := NewTable(nil)
	if _, err := tbl.Get(object.AnyKind, 42); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestGetWrongKind(t *testing.T) {
	tbl := NewTable(nil)
	f, err := newFake(tbl, object.KindString)
	if err != nil {
		t.Fatalf("newFake: %v", err)
	}
	if _, err := tbl.Get(object.KindList, f.ID()); err == nil {
		t.Error("expected error when kind mismatches")
	}
}

func TestRemoveOnZeroRefs(t *testing.T) {
	tbl := NewTable(nil)
	f, err := newFake(tbl, object.KindFile)
	if err != nil {
		t.Fatalf("newFake: %v", err)
	}
	f.AddInternalRef()
	if err := f.RemoveInternalRef(); err != nil {
		t.Fatalf("RemoveInternalRef: %v", err)
	}
	if !f.IsDestroyed() {
		t.Error("expected object to be destroyed once refs hit zero")
	}
	if _, err := tbl.Get(object.AnyKind, f.ID()); err == nil {
		t.Error("expected destroyed object to be removed from inventory")
	}
}

func TestIDsAreNotReusedWhileLive(t *testing.T) {
	tbl := NewTable(nil)
	f1, err := newFake(tbl, object.KindString)
	if err != nil {
		t.Fatalf("newFake: %v", err)
	}
	f2, err := newFake(tbl, object.KindString)
	if err != nil {
		t.Fatalf("newFake: %v", err)
	}
	if f1.ID() == f2.ID() {
		t.Error("expected distinct ids for two live objects")
	}
}

func TestStockStringInterns(t *testing.T) {
	calls := 0
	newStockString := func(t *Table, data []byte) (object.Object, error) {
		calls++
		id, err := t.Reserve()
		if err != nil {
			return nil, err
		}
		s := &fakeObj{}
		s.Base = object.NewBase(id, object.KindString, t, nil)
		s.Lock()
		if err := t.Add(s); err != nil {
			return nil, err
		}
		return s, nil
	}
	tbl := NewTable(newStockString)

	a, err := tbl.StockString([]byte("hello"))
	if err != nil {
		t.Fatalf("StockString: %v", err)
	}
	b, err := tbl.StockString([]byte("hello"))
	if err != nil {
		t.Fatalf("StockString: %v", err)
	}
	if a.ID() != b.ID() {
		t.Error("expected equal byte sequences to intern to the same object")
	}
	if calls != 1 {
		t.Errorf("expected newStockString called once, got %d", calls)
	}
	if a.InternalRefs() != 3 {
		t.Errorf("expected 3 internal refs (lock + 2 StockString calls), got %d", a.InternalRefs())
	}
}

func TestTeardownOrderAndLeakReporting(t *testing.T) {
	tbl := NewTable(nil)
	if _, err := newFake(tbl, object.KindString); err != nil {
		t.Fatalf("newFake: %v", err)
	}
	if _, err := newFake(tbl, object.KindProgram); err != nil {
		t.Fatalf("newFake: %v", err)
	}

	var destroyedOrder []object.Kind
	err := tbl.Teardown(func(o object.Object) {
		destroyedOrder = append(destroyedOrder, o.Kind())
	})
	if err == nil {
		t.Error("expected Teardown to report leaked objects")
	}
	if len(destroyedOrder) != 2 {
		t.Fatalf("expected 2 objects destroyed, got %d", len(destroyedOrder))
	}
	if destroyedOrder[0] != object.KindProgram || destroyedOrder[1] != object.KindString {
		t.Errorf("expected program before string, got %v", destroyedOrder)
	}
	if tbl.Count(object.KindString) != 0 || tbl.Count(object.KindProgram) != 0 {
		t.Error("expected inventory empty after teardown")
	}
}
