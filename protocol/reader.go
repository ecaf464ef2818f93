package protocol

import "io"

// Reader decodes frames from a byte stream that may deliver them in
// arbitrary chunks. It buffers partial frames between reads, so a frame
// split across several socket reads is reassembled without ever re-parsing
// consumed bytes.
//
// Reader is not safe for concurrent use: the stream has exactly one
// sequential consumer, and framing integrity depends on that.
type Reader struct {
	buf     []byte
	scratch [4096]byte
}

// NewReader returns a Reader with an empty buffer.
func NewReader() *Reader {
	return &Reader{}
}

// ReadFrom performs one read from src and returns every complete frame now
// available, in stream order. It may return zero frames (the read ended in
// the middle of a frame) — call again when src has more bytes.
//
// Frames already decoded are returned even when err is non-nil, so the
// caller must process them before acting on the error. An error wrapping
// ErrMalformedFrame is fatal for the stream.
func (r *Reader) ReadFrom(src io.Reader) ([]*Frame, error) {
	n, err := src.Read(r.scratch[:])
	if n > 0 {
		r.buf = append(r.buf, r.scratch[:n]...)
	}

	var frames []*Frame
	consumed := 0
	for {
		frame, size, decErr := Decode(r.buf[consumed:])
		if decErr == ErrIncompleteFrame {
			break
		}
		if decErr != nil {
			r.compact(consumed)
			return frames, decErr
		}
		frames = append(frames, frame)
		consumed += size
	}
	r.compact(consumed)
	return frames, err
}

// Buffered reports the number of bytes held for a partially received frame.
func (r *Reader) Buffered() int {
	return len(r.buf)
}

func (r *Reader) compact(consumed int) {
	if consumed == 0 {
		return
	}
	r.buf = append(r.buf[:0], r.buf[consumed:]...)
}
