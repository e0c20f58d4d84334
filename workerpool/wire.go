// File: workerpool/wire.go
// Package workerpool implements the worker-pool IPC dispatch subsystem
// spec.md §6 describes: a message-passing transport to off-process/
// off-thread workers, a binary TLV argument wire format, a correlation-
// id-keyed pending-request table, and graceful shutdown.
//
// Wire layout grounded directly on
// _examples/original_source/src/cpp/python/ipc_protocol.h's MessageHeader/
// ResponseHeader/WebSocketMessageHeader/WebSocketResponseHeader structs,
// translated from packed C structs to explicit little-endian
// encoding/binary reads so wire size and ordering match across platforms
// without relying on struct padding behavior.
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"encoding/binary"
	"io"

	"github.com/momentics/hioload-srv/api"
)

// MessageType enumerates the IPC message kinds (mirrors ipc_protocol.h's
// MessageType enum, including the WebSocket event/response variants).
type MessageType uint8

const (
	MsgRequest      MessageType = 1
	MsgResponse     MessageType = 2
	MsgShutdown     MessageType = 3
	MsgWSConnect    MessageType = 10
	MsgWSMessage    MessageType = 11
	MsgWSDisconnect MessageType = 12
	MsgWSSend       MessageType = 20
	MsgWSClose      MessageType = 21
)

// PayloadFormat identifies how the args/body bytes are encoded.
type PayloadFormat uint8

const (
	FormatJSON      PayloadFormat = 0
	FormatBinaryTLV PayloadFormat = 1
)

// RequestHeader precedes a request's module/function name strings and
// TLV-or-JSON argument payload.
type RequestHeader struct {
	Type           MessageType
	RequestID      uint32
	TotalLength    uint32
	ModuleNameLen  uint32
	FunctionNameLen uint32
	ArgsLen        uint32
	ArgsFormat     PayloadFormat
}

const requestHeaderSize = 1 + 4 + 4 + 4 + 4 + 4 + 1

func (h *RequestHeader) encode() []byte {
	buf := make([]byte, requestHeaderSize)
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint32(buf[1:], h.RequestID)
	binary.LittleEndian.PutUint32(buf[5:], h.TotalLength)
	binary.LittleEndian.PutUint32(buf[9:], h.ModuleNameLen)
	binary.LittleEndian.PutUint32(buf[13:], h.FunctionNameLen)
	binary.LittleEndian.PutUint32(buf[17:], h.ArgsLen)
	buf[21] = byte(h.ArgsFormat)
	return buf
}

func decodeRequestHeader(buf []byte) (*RequestHeader, error) {
	if len(buf) < requestHeaderSize {
		return nil, api.NewError(api.ErrCodeParse, "request header truncated")
	}
	return &RequestHeader{
		Type:            MessageType(buf[0]),
		RequestID:       binary.LittleEndian.Uint32(buf[1:]),
		TotalLength:     binary.LittleEndian.Uint32(buf[5:]),
		ModuleNameLen:   binary.LittleEndian.Uint32(buf[9:]),
		FunctionNameLen: binary.LittleEndian.Uint32(buf[13:]),
		ArgsLen:         binary.LittleEndian.Uint32(buf[17:]),
		ArgsFormat:      PayloadFormat(buf[21]),
	}, nil
}

// ResponseHeader precedes a response's body and optional error message.
type ResponseHeader struct {
	Type           MessageType
	RequestID      uint32
	TotalLength    uint32
	StatusCode     uint16
	BodyLen        uint32
	ErrorMessageLen uint32
	Success        bool
	BodyFormat     PayloadFormat
}

const responseHeaderSize = 1 + 4 + 4 + 2 + 4 + 4 + 1 + 1

func (h *ResponseHeader) encode() []byte {
	buf := make([]byte, responseHeaderSize)
	buf[0] = byte(h.Type)
	binary.LittleEndian.PutUint32(buf[1:], h.RequestID)
	binary.LittleEndian.PutUint32(buf[5:], h.TotalLength)
	binary.LittleEndian.PutUint16(buf[9:], h.StatusCode)
	binary.LittleEndian.PutUint32(buf[11:], h.BodyLen)
	binary.LittleEndian.PutUint32(buf[15:], h.ErrorMessageLen)
	if h.Success {
		buf[19] = 1
	}
	buf[20] = byte(h.BodyFormat)
	return buf
}

func decodeResponseHeader(buf []byte) (*ResponseHeader, error) {
	if len(buf) < responseHeaderSize {
		return nil, api.NewError(api.ErrCodeParse, "response header truncated")
	}
	return &ResponseHeader{
		Type:            MessageType(buf[0]),
		RequestID:       binary.LittleEndian.Uint32(buf[1:]),
		TotalLength:     binary.LittleEndian.Uint32(buf[5:]),
		StatusCode:      binary.LittleEndian.Uint16(buf[9:]),
		BodyLen:         binary.LittleEndian.Uint32(buf[11:]),
		ErrorMessageLen: binary.LittleEndian.Uint32(buf[15:]),
		Success:         buf[19] != 0,
		BodyFormat:      PayloadFormat(buf[20]),
	}, nil
}

// Request is a fully-assembled outbound call to a worker.
type Request struct {
	ID       uint32
	Module   string
	Function string
	Args     map[string]any
}

// EncodeRequest serializes req using the binary TLV argument format.
func EncodeRequest(req *Request) ([]byte, error) {
	args, err := EncodeArgsTLV(req.Args)
	if err != nil {
		return nil, err
	}
	h := &RequestHeader{
		Type:            MsgRequest,
		RequestID:       req.ID,
		ModuleNameLen:   uint32(len(req.Module)),
		FunctionNameLen: uint32(len(req.Function)),
		ArgsLen:         uint32(len(args)),
		ArgsFormat:      FormatBinaryTLV,
	}
	h.TotalLength = uint32(requestHeaderSize) + h.ModuleNameLen + h.FunctionNameLen + h.ArgsLen

	buf := make([]byte, 0, h.TotalLength)
	buf = append(buf, h.encode()...)
	buf = append(buf, req.Module...)
	buf = append(buf, req.Function...)
	buf = append(buf, args...)
	return buf, nil
}

// ReadRequest reads one length-delimited request from r.
func ReadRequest(r io.Reader) (*Request, error) {
	hdrBuf := make([]byte, requestHeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return nil, err
	}
	h, err := decodeRequestHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	rest := make([]byte, h.ModuleNameLen+h.FunctionNameLen+h.ArgsLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	module := string(rest[:h.ModuleNameLen])
	function := string(rest[h.ModuleNameLen : h.ModuleNameLen+h.FunctionNameLen])
	argsBuf := rest[h.ModuleNameLen+h.FunctionNameLen:]

	var args map[string]any
	if h.ArgsFormat == FormatBinaryTLV {
		args, err = DecodeArgsTLV(argsBuf)
		if err != nil {
			return nil, err
		}
	}
	return &Request{ID: h.RequestID, Module: module, Function: function, Args: args}, nil
}

// Response is a fully-assembled inbound reply from a worker.
type Response struct {
	ID         uint32
	StatusCode uint16
	Success    bool
	Body       []byte
	ErrMessage string
}

// EncodeResponse serializes resp.
func EncodeResponse(resp *Response) []byte {
	h := &ResponseHeader{
		Type:            MsgResponse,
		RequestID:       resp.ID,
		StatusCode:      resp.StatusCode,
		BodyLen:         uint32(len(resp.Body)),
		ErrorMessageLen: uint32(len(resp.ErrMessage)),
		Success:         resp.Success,
		BodyFormat:      FormatJSON,
	}
	h.TotalLength = uint32(responseHeaderSize) + h.BodyLen + h.ErrorMessageLen

	buf := make([]byte, 0, h.TotalLength)
	buf = append(buf, h.encode()...)
	buf = append(buf, resp.Body...)
	buf = append(buf, resp.ErrMessage...)
	return buf
}

// ReadResponse reads one length-delimited response from r.
func ReadResponse(r io.Reader) (*Response, error) {
	hdrBuf := make([]byte, responseHeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return nil, err
	}
	h, err := decodeResponseHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	rest := make([]byte, h.BodyLen+h.ErrorMessageLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	return &Response{
		ID:         h.RequestID,
		StatusCode: h.StatusCode,
		Success:    h.Success,
		Body:       rest[:h.BodyLen],
		ErrMessage: string(rest[h.BodyLen:]),
	}, nil
}
