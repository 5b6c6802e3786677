package value

import (
	"bytes"
	"testing"

	"redapid/inventory"
)

func TestStringSetAndGetChunk(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	s, err := NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}

	if err := s.SetChunk(0, []byte("hello")); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}
	if s.Length() != 5 {
		t.Errorf("Length() = %d, want 5", s.Length())
	}

	chunk, err := s.GetChunk(0)
	if err != nil {
		t.Fatalf("GetChunk: %v", err)
	}
	if !bytes.Equal(chunk[:5], []byte("hello")) {
		t.Errorf("GetChunk data = %q, want %q", chunk[:5], "hello")
	}
	for _, b := range chunk[5:] {
		if b != 0 {
			t.Error("expected zero padding beyond string length")
		}
	}
}

func TestStringSetChunkPadsGapWithSpaces(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	s, err := NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	if err := s.SetChunk(3, []byte("x")); err != nil {
		t.Fatalf("SetChunk: %v", err)
	}
	if !bytes.Equal(s.Bytes(), []byte("   x")) {
		t.Errorf("Bytes() = %q, want %q", s.Bytes(), "   x")
	}
}

func TestStringGetChunkAtLengthIsEmpty(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	s, err := NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	s.SetChunk(0, []byte("ab"))
	chunk, err := s.GetChunk(2)
	if err != nil {
		t.Fatalf("GetChunk at length: %v", err)
	}
	for _, b := range chunk {
		if b != 0 {
			t.Error("expected all-zero window at offset == length")
		}
	}
}

func TestStringGetChunkBeyondLengthIsOutOfRange(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	s, err := NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	s.SetChunk(0, []byte("ab"))
	if _, err := s.GetChunk(3); err == nil {
		t.Error("expected OutOfRange error")
	}
}

func TestStringTruncate(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	s, err := NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	s.SetChunk(0, []byte("hello"))
	if err := s.Truncate(2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if !bytes.Equal(s.Bytes(), []byte("he")) {
		t.Errorf("Bytes() = %q, want %q", s.Bytes(), "he")
	}
	if err := s.Truncate(5); err == nil {
		t.Error("expected error truncating beyond current length")
	}
}

func TestStringMutationFailsWhenLocked(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	s, err := NewString(inv, 0)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	s.Lock()
	if err := s.SetChunk(0, []byte("x")); err == nil {
		t.Error("expected SetChunk to fail while locked")
	}
	if err := s.Truncate(0); err == nil {
		t.Error("expected Truncate to fail while locked")
	}
}

func TestStockStringsIntern(t *testing.T) {
	inv := inventory.NewTable(NewStockString)
	a, err := inv.StockString([]byte("weather-station"))
	if err != nil {
		t.Fatalf("StockString: %v", err)
	}
	b, err := inv.StockString([]byte("weather-station"))
	if err != nil {
		t.Fatalf("StockString: %v", err)
	}
	if a.ID() != b.ID() {
		t.Error("expected equal literals to intern to the same object")
	}
	if a.LockCount() == 0 {
		t.Error("expected stock string to be permanently locked")
	}
}
