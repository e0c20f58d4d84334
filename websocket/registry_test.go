// File: websocket/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package websocket

import (
	"testing"

	"github.com/momentics/hioload-srv/reactor"
)

// syncBackend completes every submission synchronously on the calling
// goroutine, so tests can drive a Connection without a real fd or an
// actual Poll loop.
type syncBackend struct {
	writes [][]byte
	closed []int
}

func (b *syncBackend) SubmitAccept(listenFD int, cb reactor.Callback, user any) error {
	return nil
}

func (b *syncBackend) SubmitRead(fd int, buf []byte, cb reactor.Callback, user any) error {
	return nil
}

func (b *syncBackend) SubmitWrite(fd int, buf []byte, cb reactor.Callback, user any) error {
	b.writes = append(b.writes, append([]byte(nil), buf...))
	cb(reactor.IOEvent{Kind: reactor.OpWrite, Handle: fd, Result: int64(len(buf))})
	return nil
}

func (b *syncBackend) SubmitConnect(fd int, sockaddr []byte, cb reactor.Callback, user any) error {
	return nil
}

func (b *syncBackend) SubmitClose(fd int) error {
	b.closed = append(b.closed, fd)
	return nil
}

func (b *syncBackend) Poll(timeoutMicros int64) error { return nil }
func (b *syncBackend) Wake()                          {}
func (b *syncBackend) SetWakeCallback(func())         {}
func (b *syncBackend) Close() error                   { return nil }

func newTestConnection() (*Connection, *syncBackend) {
	b := &syncBackend{}
	r := reactor.New(b)
	return New(r, 7, 4096), b
}

func TestNewRegistersConnectionAndAssignsUniqueID(t *testing.T) {
	c1, _ := newTestConnection()
	c2, _ := newTestConnection()

	if c1.ID == c2.ID {
		t.Fatalf("expected distinct connection ids, both got %d", c1.ID)
	}
	if _, ok := DefaultRegistry().Lookup(c1.ID); !ok {
		t.Fatal("expected c1 to be registered")
	}
	if _, ok := DefaultRegistry().Lookup(c2.ID); !ok {
		t.Fatal("expected c2 to be registered")
	}
}

func TestCloseUnregistersConnection(t *testing.T) {
	c, _ := newTestConnection()
	id := c.ID
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := DefaultRegistry().Lookup(id); ok {
		t.Fatal("expected connection to be unregistered after Close")
	}
}

func TestRegistryLookupMiss(t *testing.T) {
	reg := NewRegistry()
	if _, ok := reg.Lookup(999999); ok {
		t.Fatal("expected lookup miss on empty registry")
	}
}

func TestCloseWithCodeSendsCloseFrameAndUnregisters(t *testing.T) {
	c, b := newTestConnection()
	id := c.ID
	if err := c.CloseWithCode(1000, "bye"); err != nil {
		t.Fatalf("close with code: %v", err)
	}
	if len(b.writes) != 1 {
		t.Fatalf("expected one close frame written, got %d", len(b.writes))
	}
	if !c.Closed() {
		t.Fatal("expected connection to be marked closed")
	}
	if _, ok := DefaultRegistry().Lookup(id); ok {
		t.Fatal("expected connection to be unregistered")
	}
}
