// Package wire implements the fixed-length little-endian frame format
// spoken over both the brickd peer socket and the cron notification
// socket (spec §6).
package wire

import (
	"encoding/binary"

	apierrors "redapid/errors"
)

const (
	// HeaderSize is the fixed 8-byte header every frame carries.
	HeaderSize = 8
	// MaxPayloadSize bounds a single frame's payload.
	MaxPayloadSize = 72
	// MaxFrameSize is the largest byte count a Reassembler ever needs
	// buffered for one frame.
	MaxFrameSize = HeaderSize + MaxPayloadSize
)

// Header is the 8-byte frame header (spec §6): uid (4 bytes), total frame
// length (1 byte), function id (1 byte), a sequence/response/auth bitfield
// byte, and an error-code nibble byte.
type Header struct {
	UID              uint32
	Length           uint8
	FunctionID       uint8
	SequenceNumber   uint8 // 4 bits, 0 is reserved for callbacks
	ResponseExpected bool
	Authentication   bool
	ErrorCode        apierrors.Code // 4 bits on the wire
}

// Frame is a decoded header plus its payload bytes (len(Payload) ==
// Header.Length - HeaderSize).
type Frame struct {
	Header  Header
	Payload []byte
}

// EncodeHeader packs h into an 8-byte buffer.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.UID)
	buf[4] = h.Length
	buf[5] = h.FunctionID

	var b6 uint8 = h.SequenceNumber & 0x0f
	if h.ResponseExpected {
		b6 |= 1 << 4
	}
	if h.Authentication {
		b6 |= 1 << 5
	}
	buf[6] = b6

	buf[7] = uint8(h.ErrorCode) & 0x0f
	return buf
}

// DecodeHeader unpacks the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, apierrors.WithDetail(apierrors.InvalidParameter, "wire.decode_header", "short header")
	}
	b6 := buf[6]
	return Header{
		UID:              binary.LittleEndian.Uint32(buf[0:4]),
		Length:           buf[4],
		FunctionID:       buf[5],
		SequenceNumber:   b6 & 0x0f,
		ResponseExpected: b6&(1<<4) != 0,
		Authentication:   b6&(1<<5) != 0,
		ErrorCode:        apierrors.Code(buf[7] & 0x0f),
	}, nil
}

// Encode serializes a full frame (header + payload).
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, apierrors.WithDetail(apierrors.InvalidParameter, "wire.encode", "payload exceeds maximum size")
	}
	f.Header.Length = uint8(HeaderSize + len(f.Payload))
	hdr := EncodeHeader(f.Header)
	out := make([]byte, 0, int(f.Header.Length))
	out = append(out, hdr[:]...)
	out = append(out, f.Payload...)
	return out, nil
}

// Decode parses a complete frame out of buf, which must hold exactly
// header.Length bytes once the header is known. Callers typically use
// Reassembler rather than calling Decode directly against a raw socket
// buffer.
func Decode(buf []byte) (Frame, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, err
	}
	if int(hdr.Length) < HeaderSize || int(hdr.Length) > MaxFrameSize {
		return Frame{}, apierrors.WithDetail(apierrors.InvalidParameter, "wire.decode", "invalid frame length")
	}
	if len(buf) < int(hdr.Length) {
		return Frame{}, apierrors.WithDetail(apierrors.InvalidParameter, "wire.decode", "truncated frame")
	}
	payload := make([]byte, int(hdr.Length)-HeaderSize)
	copy(payload, buf[HeaderSize:hdr.Length])
	return Frame{Header: hdr, Payload: payload}, nil
}

// Response builds the reply frame for a request, copying the peer's
// sequence number and forcing response_expected per §6's transport
// convention ("responses MUST copy the peer's sequence number and set
// response_expected = 1").
func Response(req Header, errorCode apierrors.Code, payload []byte) Frame {
	return Frame{
		Header: Header{
			UID:              req.UID,
			FunctionID:       req.FunctionID,
			SequenceNumber:   req.SequenceNumber,
			ResponseExpected: true,
			ErrorCode:        errorCode,
		},
		Payload: payload,
	}
}

// Callback builds an unsolicited frame (process state-change, async-read
// chunk, etc): sequence number 0, response_expected = true, matching §6's
// "callbacks use sequence number 0 and carry response_expected = true".
func Callback(uid uint32, functionID uint8, payload []byte) Frame {
	return Frame{
		Header: Header{
			UID:              uid,
			FunctionID:       functionID,
			SequenceNumber:   0,
			ResponseExpected: true,
		},
		Payload: payload,
	}
}
