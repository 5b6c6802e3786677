package wire

import apierrors "redapid/errors"

var errInvalidFrameLength = apierrors.WithDetail(apierrors.InvalidParameter, "wire.reassemble", "invalid frame length")

// Reassembler accumulates bytes read from a non-blocking socket and
// yields complete frames as they become available, so the reactor's
// non-blocking read loop never has to special-case a short read (§5:
// "read/write return an IO_CONTINUE marker that the caller loops back
// through the reactor").
type Reassembler struct {
	buf []byte
}

// Feed appends newly read bytes and returns every complete frame now
// available, leaving any partial trailing frame buffered for the next
// call.
func (r *Reassembler) Feed(data []byte) ([]Frame, error) {
	r.buf = append(r.buf, data...)

	var frames []Frame
	for {
		if len(r.buf) < HeaderSize {
			break
		}
		hdr, err := DecodeHeader(r.buf)
		if err != nil {
			return frames, err
		}
		if int(hdr.Length) < HeaderSize || int(hdr.Length) > MaxFrameSize {
			return frames, errInvalidFrameLength
		}
		if len(r.buf) < int(hdr.Length) {
			break
		}
		f, err := Decode(r.buf[:hdr.Length])
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		r.buf = r.buf[hdr.Length:]
	}
	return frames, nil
}

// Pending reports how many unconsumed bytes are buffered (a partial
// frame, or nothing).
func (r *Reassembler) Pending() int { return len(r.buf) }
