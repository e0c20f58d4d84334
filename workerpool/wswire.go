// File: workerpool/wswire.go
// WebSocket event/response wire framing, spec.md §6's "WebSocket event
// header" (parent -> worker: connect/message/disconnect) and "WebSocket
// response header" (worker -> parent: send/close), completing the
// message-type vocabulary workerpool/wire.go only enumerates constants
// for.
//
// Grounded on the same
// _examples/original_source/src/cpp/python/ipc_protocol.h
// WebSocketMessageHeader/WebSocketResponseHeader structs wire.go's HTTP
// request/response framing is grounded on, translated to explicit
// little-endian encoding/binary the same way.
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"encoding/binary"
	"io"

	"github.com/momentics/hioload-srv/api"
)

// WSEventHeader precedes a path string and payload bytes describing one
// inbound WebSocket lifecycle event or message (parent -> worker).
type WSEventHeader struct {
	Type        MessageType
	ConnID      uint64
	TotalLength uint32
	PathLen     uint32
	PayloadLen  uint32
	IsBinary    bool
}

const wsEventHeaderSize = 1 + 8 + 4 + 4 + 4 + 1

func (h *WSEventHeader) encode() []byte {
	buf := make([]byte, wsEventHeaderSize)
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint64(buf[1:], h.ConnID)
	binary.LittleEndian.PutUint32(buf[9:], h.TotalLength)
	binary.LittleEndian.PutUint32(buf[13:], h.PathLen)
	binary.LittleEndian.PutUint32(buf[17:], h.PayloadLen)
	if h.IsBinary {
		buf[21] = 1
	}
	return buf
}

func decodeWSEventHeader(typ MessageType, rest []byte) (*WSEventHeader, error) {
	if len(rest) < wsEventHeaderSize-1 {
		return nil, api.NewError(api.ErrCodeParse, "ws event header truncated")
	}
	return &WSEventHeader{
		Type:        typ,
		ConnID:      binary.LittleEndian.Uint64(rest[0:]),
		TotalLength: binary.LittleEndian.Uint32(rest[8:]),
		PathLen:     binary.LittleEndian.Uint32(rest[12:]),
		PayloadLen:  binary.LittleEndian.Uint32(rest[16:]),
		IsBinary:    rest[20] != 0,
	}, nil
}

// WSEvent is a fully-assembled inbound WebSocket lifecycle event: a
// connect (path set, payload empty), message (path empty, payload set),
// or disconnect (both empty).
type WSEvent struct {
	Type     MessageType
	ConnID   uint64
	Path     string
	Payload  []byte
	IsBinary bool
}

// EncodeWSEvent serializes ev for the parent -> worker direction.
func EncodeWSEvent(ev *WSEvent) []byte {
	h := &WSEventHeader{
		Type:       ev.Type,
		ConnID:     ev.ConnID,
		PathLen:    uint32(len(ev.Path)),
		PayloadLen: uint32(len(ev.Payload)),
		IsBinary:   ev.IsBinary,
	}
	h.TotalLength = uint32(wsEventHeaderSize) + h.PathLen + h.PayloadLen

	buf := make([]byte, 0, h.TotalLength)
	buf = append(buf, h.encode()...)
	buf = append(buf, ev.Path...)
	buf = append(buf, ev.Payload...)
	return buf
}

// readWSEventBody reads the path+payload bytes following an already-read
// WSEventHeader and assembles the WSEvent.
func readWSEventBody(r io.Reader, h *WSEventHeader) (*WSEvent, error) {
	rest := make([]byte, h.PathLen+h.PayloadLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	return &WSEvent{
		Type:     h.Type,
		ConnID:   h.ConnID,
		Path:     string(rest[:h.PathLen]),
		Payload:  rest[h.PathLen:],
		IsBinary: h.IsBinary,
	}, nil
}

// WSResponseHeader precedes a payload describing one outbound WebSocket
// send or close instruction (worker -> parent).
type WSResponseHeader struct {
	Type        MessageType
	ConnID      uint64
	TotalLength uint32
	PayloadLen  uint32
	CloseCode   uint16
	IsBinary    bool
}

const wsResponseHeaderSize = 1 + 8 + 4 + 4 + 2 + 1

func (h *WSResponseHeader) encode() []byte {
	buf := make([]byte, wsResponseHeaderSize)
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint64(buf[1:], h.ConnID)
	binary.LittleEndian.PutUint32(buf[9:], h.TotalLength)
	binary.LittleEndian.PutUint32(buf[13:], h.PayloadLen)
	binary.LittleEndian.PutUint16(buf[17:], h.CloseCode)
	if h.IsBinary {
		buf[19] = 1
	}
	return buf
}

func decodeWSResponseHeader(typ MessageType, rest []byte) (*WSResponseHeader, error) {
	if len(rest) < wsResponseHeaderSize-1 {
		return nil, api.NewError(api.ErrCodeParse, "ws response header truncated")
	}
	return &WSResponseHeader{
		Type:       typ,
		ConnID:     binary.LittleEndian.Uint64(rest[0:]),
		TotalLength: binary.LittleEndian.Uint32(rest[8:]),
		PayloadLen: binary.LittleEndian.Uint32(rest[12:]),
		CloseCode:  binary.LittleEndian.Uint16(rest[16:]),
		IsBinary:   rest[18] != 0,
	}, nil
}

// WSResponse is a fully-assembled outbound instruction: send a frame to
// connID, or close it with CloseCode (spec.md §3 WebSocketResponse).
type WSResponse struct {
	Type      MessageType
	ConnID    uint64
	Payload   []byte
	CloseCode uint16
	IsBinary  bool
}

// EncodeWSResponse serializes resp for the worker -> parent direction.
func EncodeWSResponse(resp *WSResponse) []byte {
	h := &WSResponseHeader{
		Type:       resp.Type,
		ConnID:     resp.ConnID,
		PayloadLen: uint32(len(resp.Payload)),
		CloseCode:  resp.CloseCode,
		IsBinary:   resp.IsBinary,
	}
	h.TotalLength = uint32(wsResponseHeaderSize) + h.PayloadLen

	buf := make([]byte, 0, h.TotalLength)
	buf = append(buf, h.encode()...)
	buf = append(buf, resp.Payload...)
	return buf
}

func readWSResponseBody(r io.Reader, h *WSResponseHeader) (*WSResponse, error) {
	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return &WSResponse{
		Type:      h.Type,
		ConnID:    h.ConnID,
		Payload:   payload,
		CloseCode: h.CloseCode,
		IsBinary:  h.IsBinary,
	}, nil
}

// WorkerMessage is the tagged union ReadWorkerMessage decodes into: at
// most one of HTTPResponse or WSResponse is non-nil.
type WorkerMessage struct {
	HTTPResponse *Response
	WSResponse   *WSResponse
}

// ReadWorkerMessage reads one length-delimited message from the parent's
// side of a worker Transport and routes it by its leading type byte
// (spec.md §4.11: "Each response is routed by message-type").
func ReadWorkerMessage(r io.Reader) (*WorkerMessage, error) {
	typBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, typBuf); err != nil {
		return nil, err
	}
	typ := MessageType(typBuf[0])

	switch typ {
	case MsgResponse:
		rest := make([]byte, responseHeaderSize-1)
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
		h, err := decodeResponseHeader(append(typBuf, rest...))
		if err != nil {
			return nil, err
		}
		body := make([]byte, h.BodyLen+h.ErrorMessageLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
		return &WorkerMessage{HTTPResponse: &Response{
			ID:         h.RequestID,
			StatusCode: h.StatusCode,
			Success:    h.Success,
			Body:       body[:h.BodyLen],
			ErrMessage: string(body[h.BodyLen:]),
		}}, nil

	case MsgWSSend, MsgWSClose:
		rest := make([]byte, wsResponseHeaderSize-1)
		if _, err := io.ReadFull(r, rest); err != nil {
			return nil, err
		}
		h, err := decodeWSResponseHeader(typ, rest)
		if err != nil {
			return nil, err
		}
		wsResp, err := readWSResponseBody(r, h)
		if err != nil {
			return nil, err
		}
		return &WorkerMessage{WSResponse: wsResp}, nil

	default:
		return nil, api.NewError(api.ErrCodeParse, "worker message: unrecognized type").WithContext("type", int(typ))
	}
}
