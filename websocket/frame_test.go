// File: websocket/frame_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package websocket

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	enc, err := EncodeFrame(OpText, payload, true)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	f, n, err := DecodeFrame(enc)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d, want %d", n, len(enc))
	}
	if !f.Fin || f.Opcode != OpText || !bytes.Equal(f.Payload, payload) {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if f.Masked {
		t.Fatal("server frames must never be masked")
	}
}

func TestDecodeIncompleteFrameReturnsNil(t *testing.T) {
	f, n, err := DecodeFrame([]byte{0x81})
	if f != nil || n != 0 || err != nil {
		t.Fatalf("expected (nil,0,nil) for incomplete frame, got (%v,%d,%v)", f, n, err)
	}
}

func TestEncodeClientFrameIsMaskedAndDecodes(t *testing.T) {
	payload := []byte("client says hi")
	enc, err := EncodeClientFrame(OpText, payload, true)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	f, n, err := DecodeFrame(enc)
	if err != nil || n != len(enc) {
		t.Fatalf("decode error/len: %v %d", err, n)
	}
	if !f.Masked {
		t.Fatal("client frames must be masked")
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Fatalf("unmasked payload mismatch: %q vs %q", f.Payload, payload)
	}
}

func TestLargePayloadUses64BitExtendedLength(t *testing.T) {
	payload := make([]byte, 70000)
	enc, err := EncodeFrame(OpBinary, payload, true)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	f, _, err := DecodeFrame(enc)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(f.Payload) != len(payload) {
		t.Fatalf("payload length = %d, want %d", len(f.Payload), len(payload))
	}
}

func TestOversizePayloadRejected(t *testing.T) {
	payload := make([]byte, MaxFramePayload+1)
	if _, err := EncodeFrame(OpBinary, payload, true); err == nil {
		t.Fatal("expected oversize payload to be rejected")
	}
}

func TestReassemblerJoinsFragments(t *testing.T) {
	r := NewReassembler(0)

	first := &Frame{Opcode: OpText, Fin: false, Payload: []byte("hel")}
	if msg, err := r.Feed(first); err != nil || msg != nil {
		t.Fatalf("unexpected result on first fragment: %v %v", msg, err)
	}

	mid := &Frame{Opcode: OpContinuation, Fin: false, Payload: []byte("lo ")}
	if msg, err := r.Feed(mid); err != nil || msg != nil {
		t.Fatalf("unexpected result on mid fragment: %v %v", msg, err)
	}

	last := &Frame{Opcode: OpContinuation, Fin: true, Payload: []byte("world")}
	msg, err := r.Feed(last)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg == nil || string(msg.Payload) != "hello world" || msg.Opcode != OpText {
		t.Fatalf("unexpected reassembled message: %+v", msg)
	}
}

func TestReassemblerRejectsStrayContinuation(t *testing.T) {
	r := NewReassembler(0)
	if _, err := r.Feed(&Frame{Opcode: OpContinuation, Fin: true}); err == nil {
		t.Fatal("expected error for continuation with no active message")
	}
}

func TestReassemblerEnforcesMaxSize(t *testing.T) {
	r := NewReassembler(4)
	r.Feed(&Frame{Opcode: OpText, Fin: false, Payload: []byte("12")})
	if _, err := r.Feed(&Frame{Opcode: OpContinuation, Fin: false, Payload: []byte("345")}); err == nil {
		t.Fatal("expected max size violation")
	}
}
