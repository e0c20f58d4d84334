// File: server/server_test.go
// End-to-end exercise of Server.Run over a real cleartext TCP listener,
// grounded on spec.md §8 scenario S1 (GET request/response round trip),
// narrowed to one request; httpproto/http1's own tests cover the
// keep-alive reset between requests.
// Author: momentics <momentics@gmail.com>
// License: MIT

package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/momentics/hioload-srv/app"
	"github.com/momentics/hioload-srv/httpproto"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestServerServesCleartextGET(t *testing.T) {
	a := app.New()
	a.Get("/hello", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse().WithBody([]byte("world")), nil
	})

	cfg := DefaultConfig()
	cfg.CleartextAddr = freeAddr(t)
	cfg.TLSAddr = ""
	cfg.HTTP3Addr = ""

	srv := New(cfg, a, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var conn net.Conn
	var err error
	for i := 0; i < 100; i++ {
		conn, err = net.Dial("tcp", cfg.CleartextAddr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.HasPrefix(statusLine, "HTTP/1.1 200") {
		t.Fatalf("unexpected status line: %q", statusLine)
	}

	var body strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil || line == "\r\n" {
			break
		}
	}
	buf := make([]byte, 64)
	n, _ := reader.Read(buf)
	body.Write(buf[:n])
	if !strings.Contains(body.String(), "world") {
		t.Fatalf("unexpected body: %q", body.String())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestConfigTLSConfigNilWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	tlsConf, err := cfg.TLSConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tlsConf != nil {
		t.Fatalf("expected nil tls.Config when no cert/autocert configured")
	}
}

func TestStoreNotifiesListenersOnSet(t *testing.T) {
	s := NewStore(DefaultConfig())
	ch := make(chan *Config, 1)
	s.OnReload(func(c *Config) { ch <- c })

	next := DefaultConfig()
	next.CleartextAddr = ":9090"
	s.Set(next)

	select {
	case got := <-ch:
		if got.CleartextAddr != ":9090" {
			t.Fatalf("listener saw stale config: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("listener was not notified")
	}
	if s.Snapshot().CleartextAddr != ":9090" {
		t.Fatalf("snapshot not updated")
	}
}
