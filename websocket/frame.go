// File: websocket/frame.go
// Package websocket implements the post-upgrade RFC6455 frame codec,
// fragmented-message reassembly, and the connection send queue spec.md
// §4.9 describes.
//
// Grounded on the teacher's protocol/frame.go and protocol/frame_codec.go
// (incremental DecodeFrameFromBytes returning (frame, consumed, err) so a
// partial frame just means "wait for more bytes", and the header-bit
// layout/length-extension logic). Deviates from the teacher's encoder in
// one respect: the teacher always applies a hardcoded example mask key
// even when encoding server→client frames; RFC6455 §5.1 requires servers
// to NEVER mask outgoing frames, so EncodeFrame here never masks.
// DecodeFrame accepts both masked and unmasked frames, unmasks the
// payload when a mask is present, and reports which it saw in
// Frame.Masked; it has no mode that rejects either kind.
// Author: momentics <momentics@gmail.com>
// License: MIT

package websocket

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/momentics/hioload-srv/api"
)

type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

func (o Opcode) IsControl() bool { return o >= 0x8 }

// MaxFramePayload bounds a single frame's payload (teacher's same-named
// guard against resource exhaustion).
const MaxFramePayload = 1 << 20

// Frame is one decoded WebSocket frame.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

// DecodeFrame parses one frame from raw. It returns (nil, 0, nil) when
// raw does not yet contain a complete frame, so callers simply buffer
// more bytes and retry — the incremental shape spec.md requires for a
// non-blocking reactor read.
func DecodeFrame(raw []byte) (*Frame, int, error) {
	if len(raw) < 2 {
		return nil, 0, nil
	}
	fin := raw[0]&0x80 != 0
	opcode := Opcode(raw[0] & 0x0F)
	masked := raw[1]&0x80 != 0
	length := int64(raw[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return nil, 0, nil
		}
		length = int64(binary.BigEndian.Uint64(raw[offset:]))
		offset += 8
	}

	if length > MaxFramePayload {
		return nil, 0, api.NewError(api.ErrCodeParse, "frame payload exceeds maximum allowed size")
	}

	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, 0, nil
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(raw) < total {
		return nil, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:total])
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}

	return &Frame{Fin: fin, Opcode: opcode, Masked: masked, MaskKey: maskKey, Payload: payload}, total, nil
}

// EncodeFrame serializes a server→client frame. Per RFC6455 §5.1 a server
// never masks outgoing frames.
func EncodeFrame(opcode Opcode, payload []byte, fin bool) ([]byte, error) {
	if len(payload) > MaxFramePayload {
		return nil, api.NewError(api.ErrCodeParse, "frame payload exceeds maximum allowed size")
	}

	var b0 byte
	if fin {
		b0 = 0x80
	}
	b0 |= byte(opcode) & 0x0F

	plen := len(payload)
	var hdr []byte
	switch {
	case plen <= 125:
		hdr = []byte{b0, byte(plen)}
	case plen <= 0xFFFF:
		hdr = make([]byte, 4)
		hdr[0], hdr[1] = b0, 126
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
	default:
		hdr = make([]byte, 10)
		hdr[0], hdr[1] = b0, 127
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
	}

	out := make([]byte, 0, len(hdr)+plen)
	out = append(out, hdr...)
	out = append(out, payload...)
	return out, nil
}

// EncodeClientFrame serializes a client→server frame with a fresh random
// mask key, for the client-side facade spec.md §1 also requires.
func EncodeClientFrame(opcode Opcode, payload []byte, fin bool) ([]byte, error) {
	plain, err := EncodeFrame(opcode, payload, fin)
	if err != nil {
		return nil, err
	}

	// Re-derive the header length to splice in the mask bit and key; the
	// payload region of `plain` is still unmasked at this point.
	hdrLen := len(plain) - len(payload)
	var maskKey [4]byte
	if _, err := rand.Read(maskKey[:]); err != nil {
		return nil, api.NewError(api.ErrCodeInternal, "failed to generate mask key")
	}

	out := make([]byte, 0, len(plain)+4)
	out = append(out, plain[:hdrLen]...)
	out[1] |= 0x80
	out = append(out, maskKey[:]...)
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}
	out = append(out, masked...)
	return out, nil
}
