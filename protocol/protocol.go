// Package protocol implements the binary frame codec for the NERVE socket.
//
// The socket is a Unix-domain byte stream with no message boundaries of its
// own, so frames carry their own length. Each frame is a fixed 18-byte header
// followed by a variable-length payload. The receiver parses the header first
// to learn the payload length, then waits until that many bytes are available.
//
// Frame format:
//
//	0      3   4   5   6            14         18
//	┌──────┬───┬───┬───┬────────────┬──────────┬────────────────┐
//	│magic │ v │mt │fl │ requestID  │ bodyLen  │  payload ...   │
//	│ nrv  │01 │   │   │ uint64     │ uint32   │ bodyLen bytes  │
//	└──────┴───┴───┴───┴────────────┴──────────┴────────────────┘
//
// All multi-byte fields are big-endian. Payload bytes are opaque to this
// package: they are framed, never inspected.
//
// Unknown message types decode successfully. The dispatcher decides what to
// do with them; rejecting them here would turn forward-compatible protocol
// additions into fatal errors.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic number bytes: "nrv". A frame not starting with these bytes means the
// stream has lost byte alignment (or the peer is not speaking this protocol),
// and on a stream transport alignment cannot be safely recovered.
const (
	MagicByte1 byte = 0x6e // 'n'
	MagicByte2 byte = 0x72 // 'r'
	MagicByte3 byte = 0x76 // 'v'
	Version    byte = 0x01
	HeaderSize int  = 18 // 3 (magic) + 1 (version) + 1 (msgType) + 1 (flags) + 8 (requestID) + 4 (bodyLen)
)

// MaxBodyLen caps the declared payload length. A length beyond this is far
// more likely to be a desynchronized stream than a real payload, so it is
// treated as malformed rather than allocated.
const MaxBodyLen uint32 = 16 << 20 // 16 MiB

// MsgType identifies the kind of frame.
type MsgType byte

const (
	MsgTypeSearchQuery  MsgType = 0 // Core → adapter: run a search
	MsgTypeCancel       MsgType = 1 // Core → adapter: cancel an in-flight search
	MsgTypeSearchResult MsgType = 2 // Adapter → core: search outcome (FlagError for failures)
	MsgTypeReject       MsgType = 3 // Adapter → core: request refused (e.g. duplicate id)
)

// Flags carries per-frame modifier bits.
type Flags byte

const (
	// FlagFinal marks the last frame for a request id. The adapter emits at
	// most one frame per request, so every outbound frame carries it.
	FlagFinal Flags = 1 << 0
	// FlagError marks a SEARCH_RESULT whose payload is a failure reason
	// rather than search output.
	FlagError Flags = 1 << 1
)

var (
	// ErrIncompleteFrame reports that the buffer does not yet hold a whole
	// frame. Retry with more bytes; nothing has been consumed.
	ErrIncompleteFrame = errors.New("protocol: incomplete frame")
	// ErrMalformedFrame reports bytes that cannot represent any valid frame.
	// Fatal for the connection: framing cannot be re-synchronized.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrPayloadTooLarge reports an attempt to marshal a payload larger than
	// MaxBodyLen.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
)

// Frame is one discrete protocol message.
type Frame struct {
	Type      MsgType
	Flags     Flags
	RequestID uint64
	Payload   []byte
}

// Marshal serializes a frame to its wire representation. It is deterministic:
// the same frame always produces the same bytes.
func Marshal(f *Frame) ([]byte, error) {
	if uint64(len(f.Payload)) > uint64(MaxBodyLen) {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	buf := make([]byte, HeaderSize+len(f.Payload))
	buf[0] = MagicByte1
	buf[1] = MagicByte2
	buf[2] = MagicByte3
	buf[3] = Version
	buf[4] = byte(f.Type)
	buf[5] = byte(f.Flags)
	binary.BigEndian.PutUint64(buf[6:14], f.RequestID)
	binary.BigEndian.PutUint32(buf[14:18], uint32(len(f.Payload)))
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Encode writes a complete frame to w as a single Write call, so a writer
// that is not shared mid-frame cannot interleave two frames.
func Encode(w io.Writer, f *Frame) error {
	buf, err := Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// Decode parses one frame from the front of buf and returns it together with
// the number of bytes consumed. It never partially consumes a frame:
//
//   - ErrIncompleteFrame: buf holds a prefix of a frame, consumed is 0.
//     Call again when more bytes have arrived.
//   - ErrMalformedFrame: buf cannot be the start of any valid frame.
//
// The returned frame's payload is copied out of buf, so the caller may reuse
// the buffer.
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < HeaderSize {
		return nil, 0, ErrIncompleteFrame
	}
	if buf[0] != MagicByte1 || buf[1] != MagicByte2 || buf[2] != MagicByte3 {
		return nil, 0, fmt.Errorf("%w: bad magic %x", ErrMalformedFrame, buf[0:3])
	}
	if buf[3] != Version {
		return nil, 0, fmt.Errorf("%w: unsupported version %d", ErrMalformedFrame, buf[3])
	}
	bodyLen := binary.BigEndian.Uint32(buf[14:18])
	if bodyLen > MaxBodyLen {
		return nil, 0, fmt.Errorf("%w: declared body length %d exceeds limit", ErrMalformedFrame, bodyLen)
	}
	total := HeaderSize + int(bodyLen)
	if len(buf) < total {
		return nil, 0, ErrIncompleteFrame
	}
	payload := make([]byte, bodyLen)
	copy(payload, buf[HeaderSize:total])
	return &Frame{
		Type:      MsgType(buf[4]),
		Flags:     Flags(buf[5]),
		RequestID: binary.BigEndian.Uint64(buf[6:14]),
		Payload:   payload,
	}, total, nil
}
