// Package value implements the two primitive value object types — String
// and List — that every other inventory object is built from or refers to
// (spec §4.4).
package value

import (
	"redapid/errors"
	"redapid/inventory"
	"redapid/object"
)

// MaxStringLength is the largest length a String may reach (2^31 - 1).
const MaxStringLength = 1<<31 - 1

// SetChunkSize and GetChunkSize are the fixed wire window sizes for
// set_chunk/get_chunk (§6): 58 bytes written per call, 63 read per call.
const (
	SetChunkSize = 58
	GetChunkSize = 63
)

// String is a variable-length, 8-bit-clean byte buffer. Its in-core
// representation is a plain growable slice; chunk operations only ever
// touch it through fixed-size windows, matching the wire protocol.
type String struct {
	*object.Base
	data []byte
}

// NewString reserves a String of the given initial capacity (allocate()).
// It registers itself in inv and returns the new object.
func NewString(inv *inventory.Table, reserve uint32) (*String, error) {
	if reserve > MaxStringLength {
		return nil, errors.New(errors.InvalidParameter, "string.allocate")
	}
	id, err := inv.Reserve()
	if err != nil {
		return nil, err
	}
	s := &String{data: make([]byte, 0, reserve)}
	s.Base = object.NewBase(id, object.KindString, inv, nil)
	if err := inv.Add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStockString builds a permanently locked String for use as the
// inventory's interning pool backing store. It is the function wired into
// inventory.NewTable as a NewStockStringFunc, keeping inventory free of any
// dependency on this package.
func NewStockString(inv *inventory.Table, data []byte) (object.Object, error) {
	id, err := inv.Reserve()
	if err != nil {
		return nil, err
	}
	s := &String{data: append([]byte(nil), data...)}
	s.Base = object.NewBase(id, object.KindString, inv, nil)
	s.Lock()
	if err := inv.Add(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Length returns get_length's value.
func (s *String) Length() uint32 { return uint32(len(s.data)) }

// Truncate implements truncate(length): fails when locked, and fails if
// length exceeds the current length (it cannot grow the string).
func (s *String) Truncate(length uint32) error {
	if s.LockCount() > 0 {
		return errors.New(errors.ObjectIsLocked, "string.truncate")
	}
	if length > s.Length() {
		return errors.New(errors.InvalidParameter, "string.truncate")
	}
	s.data = s.data[:length]
	return nil
}

// SetChunk implements set_chunk(offset, window): fails when locked. When
// offset is beyond the current length, the gap is padded with spaces. The
// window is at most SetChunkSize bytes; shorter windows are accepted as-is
// (the caller is expected to always send a full wire chunk, but nothing
// here depends on that).
func (s *String) SetChunk(offset uint32, window []byte) error {
	if s.LockCount() > 0 {
		return errors.New(errors.ObjectIsLocked, "string.set_chunk")
	}
	if len(window) > SetChunkSize {
		window = window[:SetChunkSize]
	}
	end := uint64(offset) + uint64(len(window))
	if end > MaxStringLength {
		return errors.New(errors.InvalidParameter, "string.set_chunk")
	}
	if uint32(end) > s.Length() {
		grown := make([]byte, end)
		copy(grown, s.data)
		for i := s.Length(); i < offset; i++ {
			grown[i] = ' '
		}
		s.data = grown
	}
	copy(s.data[offset:], window)
	return nil
}

// GetChunk implements get_chunk(offset): a GetChunkSize window, zero-padded.
// offset == length returns an all-zero window; offset > length is an error.
func (s *String) GetChunk(offset uint32) ([GetChunkSize]byte, error) {
	var out [GetChunkSize]byte
	if offset > s.Length() {
		return out, errors.New(errors.OutOfRange, "string.get_chunk")
	}
	n := copy(out[:], s.data[offset:])
	_ = n
	return out, nil
}

// Bytes returns the raw contents, for callers (e.g. program config
// rendering) that need the whole buffer rather than a windowed view.
func (s *String) Bytes() []byte { return s.data }
