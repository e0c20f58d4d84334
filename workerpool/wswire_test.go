// File: workerpool/wswire_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"bytes"
	"io"
	"testing"
)

func TestWSEventRoundTrip(t *testing.T) {
	ev := &WSEvent{Type: MsgWSMessage, ConnID: 9001, Path: "/chat", Payload: []byte("hello"), IsBinary: false}
	wire := EncodeWSEvent(ev)

	typBuf := make([]byte, 1)
	r := bytes.NewReader(wire)
	if _, err := r.Read(typBuf); err != nil {
		t.Fatalf("read type: %v", err)
	}
	rest := make([]byte, wsEventHeaderSize-1)
	if _, err := r.Read(rest); err != nil {
		t.Fatalf("read rest: %v", err)
	}
	h, err := decodeWSEventHeader(MessageType(typBuf[0]), rest)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	got, err := readWSEventBody(r, h)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if got.ConnID != 9001 || got.Path != "/chat" || string(got.Payload) != "hello" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestWSResponseRoundTripViaReadWorkerMessage(t *testing.T) {
	resp := &WSResponse{Type: MsgWSSend, ConnID: 55, Payload: []byte("pong"), IsBinary: true}
	wire := EncodeWSResponse(resp)

	msg, err := ReadWorkerMessage(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("read worker message: %v", err)
	}
	if msg.HTTPResponse != nil {
		t.Fatal("expected no HTTP response")
	}
	if msg.WSResponse == nil {
		t.Fatal("expected a WS response")
	}
	if msg.WSResponse.ConnID != 55 || !msg.WSResponse.IsBinary || string(msg.WSResponse.Payload) != "pong" {
		t.Fatalf("unexpected ws response: %+v", msg.WSResponse)
	}
}

func TestWSCloseResponseCarriesCloseCode(t *testing.T) {
	resp := &WSResponse{Type: MsgWSClose, ConnID: 3, CloseCode: 1001, Payload: []byte("going away")}
	wire := EncodeWSResponse(resp)

	msg, err := ReadWorkerMessage(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("read worker message: %v", err)
	}
	if msg.WSResponse.CloseCode != 1001 || string(msg.WSResponse.Payload) != "going away" {
		t.Fatalf("unexpected close response: %+v", msg.WSResponse)
	}
}

func TestReadWorkerMessageRoutesHTTPResponse(t *testing.T) {
	wire := EncodeResponse(&Response{ID: 17, StatusCode: 200, Success: true, Body: []byte("hi")})
	msg, err := ReadWorkerMessage(bytes.NewReader(wire))
	if err != nil {
		t.Fatalf("read worker message: %v", err)
	}
	if msg.WSResponse != nil {
		t.Fatal("expected no WS response")
	}
	if msg.HTTPResponse == nil || msg.HTTPResponse.ID != 17 || string(msg.HTTPResponse.Body) != "hi" {
		t.Fatalf("unexpected http response: %+v", msg.HTTPResponse)
	}
}

func TestReadWorkerMessageRejectsUnknownType(t *testing.T) {
	if _, err := ReadWorkerMessage(bytes.NewReader([]byte{99})); err == nil {
		t.Fatal("expected error for unrecognized message type")
	}
}

// pairTransport is an in-memory io.ReadWriteCloser wired to a buffer the
// test reads back from, standing in for a worker's side of the IPC
// channel without needing a real socket or pipe. Read blocks until
// Close, so the pool's background read loop parks instead of spinning.
type pairTransport struct {
	written *bytes.Buffer
	closeCh chan struct{}
}

func newPairTransport() *pairTransport {
	return &pairTransport{written: &bytes.Buffer{}, closeCh: make(chan struct{})}
}

func (t *pairTransport) Read(p []byte) (int, error) {
	<-t.closeCh
	return 0, io.EOF
}
func (t *pairTransport) Write(p []byte) (int, error) { return t.written.Write(p) }
func (t *pairTransport) Close() error {
	select {
	case <-t.closeCh:
	default:
		close(t.closeCh)
	}
	return nil
}

func TestNotifyWSRoutesByConnIDModulus(t *testing.T) {
	t1, t2 := newPairTransport(), newPairTransport()
	pool := NewPool([]Transport{t1, t2})
	defer pool.Shutdown()

	if err := pool.NotifyWS(&WSEvent{Type: MsgWSConnect, ConnID: 4, Path: "/chat"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := pool.NotifyWS(&WSEvent{Type: MsgWSConnect, ConnID: 5, Path: "/chat"}); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if t1.written.Len() == 0 {
		t.Fatal("expected connection id 4 to route to worker 0")
	}
	if t2.written.Len() == 0 {
		t.Fatal("expected connection id 5 to route to worker 1")
	}
}

func TestNotifyWSFailsAfterShutdown(t *testing.T) {
	pool := NewPool([]Transport{newPairTransport()})
	pool.Shutdown()
	if err := pool.NotifyWS(&WSEvent{Type: MsgWSDisconnect, ConnID: 1}); err == nil {
		t.Fatal("expected NotifyWS to fail after shutdown")
	}
}
