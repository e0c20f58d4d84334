// File: websocket/reassembly.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package websocket

import "github.com/momentics/hioload-srv/api"

// Reassembler accumulates a fragmented message (an initial Text/Binary
// frame with Fin=false followed by zero or more Continuation frames)
// into one logical message, per RFC6455 §5.4. Control frames may be
// interleaved between fragments and are never buffered here.
type Reassembler struct {
	active  bool
	opcode  Opcode
	payload []byte
	maxSize int
}

// NewReassembler bounds the total reassembled payload at maxSize bytes.
func NewReassembler(maxSize int) *Reassembler {
	return &Reassembler{maxSize: maxSize}
}

// Message is a fully reassembled, non-control WebSocket message.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Feed processes one data frame (Text/Binary/Continuation) and returns a
// non-nil Message once a Fin frame completes it.
func (r *Reassembler) Feed(f *Frame) (*Message, error) {
	switch f.Opcode {
	case OpText, OpBinary:
		if r.active {
			return nil, api.NewError(api.ErrCodeParse, "new message started before previous fragment finished")
		}
		if f.Fin {
			return &Message{Opcode: f.Opcode, Payload: f.Payload}, nil
		}
		r.active = true
		r.opcode = f.Opcode
		r.payload = append([]byte(nil), f.Payload...)
		return nil, r.checkSize()

	case OpContinuation:
		if !r.active {
			return nil, api.NewError(api.ErrCodeParse, "continuation frame without an active fragmented message")
		}
		r.payload = append(r.payload, f.Payload...)
		if err := r.checkSize(); err != nil {
			return nil, err
		}
		if f.Fin {
			msg := &Message{Opcode: r.opcode, Payload: r.payload}
			r.reset()
			return msg, nil
		}
		return nil, nil

	default:
		return nil, api.NewError(api.ErrCodeInternal, "Feed called with a control opcode")
	}
}

func (r *Reassembler) checkSize() error {
	if r.maxSize > 0 && len(r.payload) > r.maxSize {
		r.reset()
		return api.NewError(api.ErrCodeResourceExhausted, "reassembled message exceeds maximum size")
	}
	return nil
}

func (r *Reassembler) reset() {
	r.active = false
	r.opcode = 0
	r.payload = nil
}
