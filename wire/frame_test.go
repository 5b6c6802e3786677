package wire

import (
	"bytes"
	"testing"

	apierrors "redapid/errors"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	h := Header{
		UID:              0xdeadbeef,
		FunctionID:       7,
		SequenceNumber:   9,
		ResponseExpected: true,
		Authentication:   true,
		ErrorCode:        apierrors.ObjectIsLocked,
	}
	buf := EncodeHeader(h)
	got, err := DecodeHeader(buf[:])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	got.Length = 0 // Length isn't set by the caller-facing Header literal above
	if got.UID != h.UID || got.FunctionID != h.FunctionID || got.SequenceNumber != h.SequenceNumber ||
		got.ResponseExpected != h.ResponseExpected || got.Authentication != h.Authentication || got.ErrorCode != h.ErrorCode {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestEncodeSetsLength(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	raw, err := Encode(Frame{Header: Header{FunctionID: 1}, Payload: payload})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(raw) != HeaderSize+len(payload) {
		t.Errorf("len(raw) = %d, want %d", len(raw), HeaderSize+len(payload))
	}
	if raw[4] != uint8(HeaderSize+len(payload)) {
		t.Errorf("length byte = %d, want %d", raw[4], HeaderSize+len(payload))
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Frame{Payload: make([]byte, MaxPayloadSize+1)})
	if err == nil {
		t.Error("expected Encode to reject an oversized payload")
	}
}

func TestDecodeFullRoundTrip(t *testing.T) {
	payload := []byte("hello-world")
	raw, err := Encode(Frame{Header: Header{UID: 42, FunctionID: 3, SequenceNumber: 1}, Payload: payload})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("Payload = %q, want %q", f.Payload, payload)
	}
	if f.Header.UID != 42 || f.Header.FunctionID != 3 {
		t.Errorf("Header = %+v", f.Header)
	}
}

func TestResponseCopiesSequenceNumberAndSetsResponseExpected(t *testing.T) {
	req := Header{UID: 1, FunctionID: 5, SequenceNumber: 6, ResponseExpected: false}
	resp := Response(req, apierrors.Success, nil)
	if resp.Header.SequenceNumber != req.SequenceNumber {
		t.Errorf("SequenceNumber = %d, want %d", resp.Header.SequenceNumber, req.SequenceNumber)
	}
	if !resp.Header.ResponseExpected {
		t.Error("expected response_expected to be forced true")
	}
}

func TestCallbackUsesSequenceZero(t *testing.T) {
	cb := Callback(1, 9, []byte{1})
	if cb.Header.SequenceNumber != 0 {
		t.Errorf("SequenceNumber = %d, want 0", cb.Header.SequenceNumber)
	}
	if !cb.Header.ResponseExpected {
		t.Error("expected callback response_expected to be true")
	}
}
