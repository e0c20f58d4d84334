// File: workerpool/handler_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"testing"
	"time"

	"github.com/momentics/hioload-srv/httpproto"
)

func TestPoolHandlerRoundTripsSuccess(t *testing.T) {
	serverSide, clientSide := NewShmRingPair(8)
	pool := NewPool([]Transport{clientSide})
	defer pool.Shutdown()

	go func() {
		req, err := ReadRequest(serverSide)
		if err != nil {
			return
		}
		if req.Module != "demo" || req.Function != "echo" {
			t.Errorf("unexpected module/function: %s/%s", req.Module, req.Function)
		}
		serverSide.Write(EncodeResponse(&Response{ID: req.ID, StatusCode: 200, Success: true, Body: []byte(`{"ok":true}`)}))
	}()

	handler := pool.Handler("demo", "echo")
	done := make(chan struct{})
	var resp *httpproto.Response
	var err error
	go func() {
		resp, err = handler(&httpproto.Request{Method: "GET", Path: "/worker/echo", Params: map[string]string{"message": "hi"}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Headers.Get("Content-Type") != "application/json" {
		t.Fatalf("expected JSON content type, got %q", resp.Headers.Get("Content-Type"))
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
}

func TestPoolHandlerMapsWorkerFailureToJSON500(t *testing.T) {
	serverSide, clientSide := NewShmRingPair(8)
	pool := NewPool([]Transport{clientSide})
	defer pool.Shutdown()

	go func() {
		req, err := ReadRequest(serverSide)
		if err != nil {
			return
		}
		serverSide.Write(EncodeResponse(&Response{ID: req.ID, Success: false, ErrMessage: "boom"}))
	}()

	handler := pool.Handler("demo", "fail")
	done := make(chan struct{})
	var resp *httpproto.Response
	var err error
	go func() {
		resp, err = handler(&httpproto.Request{Method: "GET", Path: "/worker/fail"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if resp.Headers.Get("Content-Type") != "application/json" {
		t.Fatalf("expected JSON content type, got %q", resp.Headers.Get("Content-Type"))
	}
}
