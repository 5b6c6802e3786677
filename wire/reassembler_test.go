package wire

import "testing"

func TestReassemblerYieldsCompleteFrames(t *testing.T) {
	f1, _ := Encode(Frame{Header: Header{FunctionID: 1}, Payload: []byte("abc")})
	f2, _ := Encode(Frame{Header: Header{FunctionID: 2}, Payload: []byte("xy")})

	var r Reassembler
	frames, err := r.Feed(append(append([]byte{}, f1...), f2...))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].Header.FunctionID != 1 || frames[1].Header.FunctionID != 2 {
		t.Errorf("frames out of order: %+v", frames)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
}

func TestReassemblerBuffersPartialFrame(t *testing.T) {
	full, _ := Encode(Frame{Header: Header{FunctionID: 1}, Payload: []byte("hello")})

	var r Reassembler
	frames, err := r.Feed(full[:HeaderSize+2])
	if err != nil {
		t.Fatalf("Feed (partial): %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("expected no frames from a partial header+payload, got %d", len(frames))
	}
	if r.Pending() == 0 {
		t.Error("expected the partial frame to remain buffered")
	}

	frames, err = r.Feed(full[HeaderSize+2:])
	if err != nil {
		t.Fatalf("Feed (rest): %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames after completing the buffer, want 1", len(frames))
	}
	if r.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", r.Pending())
	}
}

func TestReassemblerRejectsInvalidLength(t *testing.T) {
	buf := make([]byte, HeaderSize)
	buf[4] = 3 // shorter than HeaderSize

	var r Reassembler
	if _, err := r.Feed(buf); err == nil {
		t.Error("expected Feed to reject a header.Length shorter than HeaderSize")
	}
}
