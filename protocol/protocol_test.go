package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestMarshalDecodeRoundTrip(t *testing.T) {
	frame := &Frame{
		Type:      MsgTypeSearchQuery,
		Flags:     FlagFinal,
		RequestID: 42,
		Payload:   []byte("where is the love"),
	}

	buf, err := Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if consumed != len(buf) {
		t.Errorf("consumed mismatch: got %d, want %d", consumed, len(buf))
	}
	if decoded.Type != frame.Type {
		t.Errorf("Type mismatch: got %d, want %d", decoded.Type, frame.Type)
	}
	if decoded.Flags != frame.Flags {
		t.Errorf("Flags mismatch: got %d, want %d", decoded.Flags, frame.Flags)
	}
	if decoded.RequestID != frame.RequestID {
		t.Errorf("RequestID mismatch: got %d, want %d", decoded.RequestID, frame.RequestID)
	}
	if !bytes.Equal(decoded.Payload, frame.Payload) {
		t.Errorf("Payload mismatch: got %q, want %q", decoded.Payload, frame.Payload)
	}

	// Re-marshaling the decoded frame must reproduce the original bytes.
	again, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal of decoded frame failed: %v", err)
	}
	if !bytes.Equal(again, buf) {
		t.Errorf("round trip not byte-identical")
	}
}

func TestMarshalDeterministic(t *testing.T) {
	frame := &Frame{Type: MsgTypeSearchResult, RequestID: 7, Payload: []byte("r")}
	a, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Marshal is not deterministic")
	}
}

func TestEncodeMatchesMarshal(t *testing.T) {
	frame := &Frame{Type: MsgTypeCancel, RequestID: 9}
	want, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, frame); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Error("Encode output differs from Marshal")
	}
}

func TestDecodeIncomplete(t *testing.T) {
	frame := &Frame{Type: MsgTypeSearchQuery, RequestID: 1, Payload: []byte("query")}
	full, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}

	// Every strict prefix must report incomplete and consume nothing.
	for n := 0; n < len(full); n++ {
		_, consumed, err := Decode(full[:n])
		if !errors.Is(err, ErrIncompleteFrame) {
			t.Fatalf("prefix of %d bytes: want ErrIncompleteFrame, got %v", n, err)
		}
		if consumed != 0 {
			t.Fatalf("prefix of %d bytes: consumed %d, want 0", n, consumed)
		}
	}
}

func TestDecodeBadMagic(t *testing.T) {
	frame := &Frame{Type: MsgTypeSearchQuery, RequestID: 1}
	buf, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	buf[0] = 0x00

	_, _, err = Decode(buf)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("want ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeBadVersion(t *testing.T) {
	frame := &Frame{Type: MsgTypeSearchQuery, RequestID: 1}
	buf, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	buf[3] = 0xFF

	_, _, err = Decode(buf)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("want ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeOversizedBody(t *testing.T) {
	frame := &Frame{Type: MsgTypeSearchQuery, RequestID: 1}
	buf, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}
	binary.BigEndian.PutUint32(buf[14:18], MaxBodyLen+1)

	_, _, err = Decode(buf)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("want ErrMalformedFrame, got %v", err)
	}
}

func TestDecodeUnknownMsgType(t *testing.T) {
	// Message types this adapter does not know must still decode, so the
	// dispatcher can ignore them instead of killing the connection.
	frame := &Frame{Type: MsgType(99), RequestID: 5, Payload: []byte("future")}
	buf, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}

	decoded, _, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Type != MsgType(99) {
		t.Errorf("Type mismatch: got %d, want 99", decoded.Type)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	frame := &Frame{Type: MsgTypeCancel, RequestID: 3}
	buf, err := Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}

	decoded, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if consumed != HeaderSize {
		t.Errorf("consumed mismatch: got %d, want %d", consumed, HeaderSize)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(decoded.Payload))
	}
}

func TestDecodeBackToBackFrames(t *testing.T) {
	first, err := Marshal(&Frame{Type: MsgTypeSearchQuery, RequestID: 1, Payload: []byte("a")})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(&Frame{Type: MsgTypeCancel, RequestID: 2})
	if err != nil {
		t.Fatal(err)
	}
	buf := append(append([]byte{}, first...), second...)

	f1, n1, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode first failed: %v", err)
	}
	if f1.RequestID != 1 {
		t.Errorf("first RequestID: got %d, want 1", f1.RequestID)
	}
	f2, n2, err := Decode(buf[n1:])
	if err != nil {
		t.Fatalf("Decode second failed: %v", err)
	}
	if f2.RequestID != 2 {
		t.Errorf("second RequestID: got %d, want 2", f2.RequestID)
	}
	if n1+n2 != len(buf) {
		t.Errorf("consumed %d bytes total, want %d", n1+n2, len(buf))
	}
}

func TestMarshalPayloadTooLarge(t *testing.T) {
	frame := &Frame{
		Type:    MsgTypeSearchResult,
		Payload: make([]byte, int(MaxBodyLen)+1),
	}
	_, err := Marshal(frame)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("want ErrPayloadTooLarge, got %v", err)
	}
}
