// File: dispatch/tls.go
// TLS-terminated accept path: accepts over the reactor the same way
// ListenCleartext does, but hands each accepted fd off to a dedicated
// goroutine that performs the TLS handshake (crypto/tls requires a
// blocking net.Conn, which tlsadapter.ReactorConn provides over the
// async reactor fd) and then selects HTTP/2 or HTTP/1.1 by the
// negotiated ALPN protocol (spec.md §4.2).
// Author: momentics <momentics@gmail.com>
// License: MIT

package dispatch

import (
	"context"
	"crypto/tls"
	"io"
	"log"
	"sync"

	"github.com/momentics/hioload-srv/httpproto"
	"github.com/momentics/hioload-srv/httpproto/http1"
	"github.com/momentics/hioload-srv/httpproto/http2"
	"github.com/momentics/hioload-srv/internal/netutil"
	"github.com/momentics/hioload-srv/reactor"
	"github.com/momentics/hioload-srv/tlsadapter"
)

// ListenTLS binds addr, accepts TCP connections over the reactor, and
// performs TLS + ALPN negotiation on each before routing to HTTP/2 or
// HTTP/1.1.
func (d *Dispatcher) ListenTLS(addr string, tlsConfig *tls.Config) error {
	fd, closeFn, err := netutil.ListenerFD("tcp", addr)
	if err != nil {
		return err
	}
	d.listeners = append(d.listeners, closeFn)
	d.submitTLSAccept(fd, tlsConfig)
	return nil
}

// ListenTLSReusePort behaves like ListenTLS but binds with SO_REUSEPORT,
// for one-per-reactor-thread replication (spec.md §4.5).
func (d *Dispatcher) ListenTLSReusePort(addr string, tlsConfig *tls.Config) error {
	fd, closeFn, err := netutil.ListenerFDReusePort("tcp", addr)
	if err != nil {
		return err
	}
	d.listeners = append(d.listeners, closeFn)
	d.submitTLSAccept(fd, tlsConfig)
	return nil
}

func (d *Dispatcher) submitTLSAccept(listenFD int, tlsConfig *tls.Config) {
	d.Reactor.AcceptAsync(listenFD, func(ev reactor.IOEvent) {
		if ev.Result >= 0 {
			go d.handleTLSConn(int(ev.Result), tlsConfig)
		} else {
			log.Printf("dispatch: tls accept failed: result=%d", ev.Result)
		}
		d.submitTLSAccept(listenFD, tlsConfig)
	}, nil)
}

func (d *Dispatcher) handleTLSConn(fd int, tlsConfig *tls.Config) {
	plain := tlsadapter.NewReactorConn(d.Reactor, fd, nil)
	adapter := tlsadapter.NewAdapter(plain, tlsConfig)
	if err := adapter.Handshake(context.Background()); err != nil {
		log.Printf("dispatch: tls handshake failed: %v", err)
		d.Reactor.CloseAsync(fd)
		return
	}

	conn := adapter.Conn()
	switch adapter.NegotiatedProtocol() {
	case tlsadapter.ProtoHTTP2:
		d.serveHTTP2(conn)
	default:
		d.serveHTTP1Blocking(conn)
	}
}

// serveHTTP1Blocking drives an http1.Connection from a dedicated
// goroutine reading a blocking net.Conn, reusing the exact same
// state-machine type the cleartext path drives from reactor callbacks —
// ProcessInput/Output/CommitOutput don't care whether their caller is an
// async callback or a blocking loop.
func (d *Dispatcher) serveHTTP1Blocking(conn io.ReadWriteCloser) {
	defer conn.Close()
	c := http1.New(d.handleHTTP)
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if _, err := c.ProcessInput(buf[:n]); err != nil {
			c.WriteErrorResponse(parseErrorResponse(err))
			for c.HasPendingOutput() {
				out := c.Output()
				written, werr := conn.Write(out)
				if werr != nil {
					return
				}
				c.CommitOutput(written)
			}
			return
		}
		for c.HasPendingOutput() {
			out := c.Output()
			written, werr := conn.Write(out)
			if werr != nil {
				return
			}
			c.CommitOutput(written)
		}
		if c.IsWebSocketUpgrade() {
			// A TLS-terminated WebSocket connection has no raw fd for the
			// reactor-driven websocket.Connection to submit async reads
			// against (crypto/tls owns the fd underneath); it continues
			// as a blocking frame loop here instead.
			d.serveWebSocketBlocking(conn)
			return
		}
		if c.State() == http1.StateClosing || c.State() == http1.StateError {
			return
		}
	}
}

func (d *Dispatcher) serveHTTP2(conn io.ReadWriteCloser) {
	defer conn.Close()
	var writeMu sync.Mutex

	c := http2.New(d.Resumer, func(req *httpproto.Request) (*httpproto.Response, error) {
		return d.App.Router().Dispatch(req)
	})
	flushOutput := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		out := c.Output()
		if out == nil {
			return nil
		}
		_, err := conn.Write(out)
		return err
	}
	c.SetStreamDoneCallback(func() {
		if err := flushOutput(); err != nil {
			log.Printf("http2: stream write failed: %v", err)
		}
	})

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if err := c.Feed(buf[:n]); err != nil {
			return
		}
		if err := flushOutput(); err != nil {
			return
		}
	}
}
