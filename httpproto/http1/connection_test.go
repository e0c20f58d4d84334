// File: httpproto/http1/connection_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package http1

import (
	"strings"
	"testing"

	"github.com/momentics/hioload-srv/httpproto"
)

func TestSimpleGETRequestResponse(t *testing.T) {
	c := New(func(req *httpproto.Request) (*httpproto.Response, error) {
		if req.Method != "GET" || req.Path != "/hello" {
			t.Fatalf("unexpected request: %+v", req)
		}
		return httpproto.NewResponse().WithBody([]byte("world")), nil
	})

	raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"
	n, err := c.ProcessInput([]byte(raw))
	if err != nil {
		t.Fatalf("ProcessInput error: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d, want %d", n, len(raw))
	}
	if c.State() != StateWritingResponse {
		t.Fatalf("state = %v, want writing_response", c.State())
	}
	out := string(c.Output())
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") || !strings.Contains(out, "world") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestKeepAliveResetsForNextRequest(t *testing.T) {
	c := New(func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse(), nil
	})
	raw := "GET / HTTP/1.1\r\n\r\n"
	c.ProcessInput([]byte(raw))
	c.CommitOutput(len(c.Output()))
	if c.State() != StateReadingRequest {
		t.Fatalf("expected reset to reading_request, got %v", c.State())
	}
}

func TestConnectionCloseHeaderDisablesKeepAlive(t *testing.T) {
	c := New(func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse(), nil
	})
	raw := "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"
	c.ProcessInput([]byte(raw))
	if c.ShouldKeepAlive() {
		t.Fatal("expected keep-alive false when Connection: close present")
	}
}

func TestHTTP10RequiresExplicitKeepAlive(t *testing.T) {
	c := New(func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse(), nil
	})
	raw := "GET / HTTP/1.0\r\n\r\n"
	c.ProcessInput([]byte(raw))
	if c.ShouldKeepAlive() {
		t.Fatal("expected HTTP/1.0 without keep-alive header to close")
	}
}

func TestBodyReadInMultiplePackets(t *testing.T) {
	var gotBody string
	c := New(func(req *httpproto.Request) (*httpproto.Response, error) {
		gotBody = string(req.Body)
		return httpproto.NewResponse(), nil
	})
	head := "POST /x HTTP/1.1\r\nContent-Length: 5\r\n\r\n"
	c.ProcessInput([]byte(head))
	c.ProcessInput([]byte("he"))
	c.ProcessInput([]byte("llo"))
	if gotBody != "hello" {
		t.Fatalf("gotBody = %q, want hello", gotBody)
	}
}

func TestWebSocketUpgradeHandshake(t *testing.T) {
	c := New(func(req *httpproto.Request) (*httpproto.Response, error) {
		h, err := UpgradeToWebSocket(req)
		if err != nil {
			return nil, err
		}
		return &httpproto.Response{StatusCode: 101, StatusText: "Switching Protocols", Headers: h}, nil
	})
	raw := "GET /ws HTTP/1.1\r\n" +
		"Connection: Upgrade\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	c.ProcessInput([]byte(raw))
	if !c.IsWebSocketUpgrade() {
		t.Fatal("expected upgrade to be pending")
	}
	accept := c.WebSocketAcceptHeaders().Get("Sec-WebSocket-Accept")
	if accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("unexpected accept key: %q", accept)
	}
}

func TestOversizeHeaderBlockErrors(t *testing.T) {
	c := New(nil)
	big := strings.Repeat("X-Pad: " + strings.Repeat("a", 200) + "\r\n", 1000)
	_, err := c.ProcessInput([]byte("GET / HTTP/1.1\r\n" + big))
	if err == nil {
		t.Fatal("expected oversized header error")
	}
	if c.State() != StateError {
		t.Fatalf("state = %v, want error", c.State())
	}
}
