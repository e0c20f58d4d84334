// File: dispatch/cleartext.go
// Package dispatch implements the protocol dispatcher spec.md §4.2
// describes: accept loops over the reactor for cleartext and TLS
// listeners, ALPN-based protocol selection, and per-connection
// state-machine ownership (HTTP/1.1, HTTP/2, and post-upgrade
// WebSocket).
//
// The cleartext accept/read/write loop is grounded on the teacher's
// reactor/reactor.go accept-callback idiom generalized from raw echo
// bytes to driving an http1.Connection state machine, with the upgrade
// branch handing the same fd to a websocket.Connection exactly once
// IsWebSocketUpgrade() is observed.
// Author: momentics <momentics@gmail.com>
// License: MIT

package dispatch

import (
	"errors"
	"log"

	"github.com/momentics/hioload-srv/api"
	"github.com/momentics/hioload-srv/httpproto"
	"github.com/momentics/hioload-srv/httpproto/http1"
	"github.com/momentics/hioload-srv/internal/netutil"
	"github.com/momentics/hioload-srv/reactor"
	"github.com/momentics/hioload-srv/websocket"
)

const readBufferSize = 16 * 1024
const maxWebSocketMessageSize = 16 * 1024 * 1024

// clearConn owns one cleartext HTTP/1.1 connection's read/write cycle
// against the reactor, re-arming itself after every completion.
type clearConn struct {
	d   *Dispatcher
	fd  int
	c   *http1.Connection
	buf []byte
}

// ListenCleartext binds addr and begins accepting plain-TCP HTTP/1.1 (and
// post-upgrade WebSocket) connections, driven entirely by d.Reactor.
func (d *Dispatcher) ListenCleartext(addr string) error {
	fd, closeFn, err := netutil.ListenerFD("tcp", addr)
	if err != nil {
		return err
	}
	d.listeners = append(d.listeners, closeFn)
	d.submitAccept(fd)
	return nil
}

// ListenCleartextReusePort behaves like ListenCleartext but binds with
// SO_REUSEPORT, for use when the same addr is bound once per reactor
// thread so the kernel distributes accepts across them (spec.md §4.5).
func (d *Dispatcher) ListenCleartextReusePort(addr string) error {
	fd, closeFn, err := netutil.ListenerFDReusePort("tcp", addr)
	if err != nil {
		return err
	}
	d.listeners = append(d.listeners, closeFn)
	d.submitAccept(fd)
	return nil
}

func (d *Dispatcher) submitAccept(listenFD int) {
	d.Reactor.AcceptAsync(listenFD, func(ev reactor.IOEvent) {
		if ev.Result >= 0 {
			d.acceptCleartext(int(ev.Result))
		} else {
			log.Printf("dispatch: accept failed: result=%d", ev.Result)
		}
		d.submitAccept(listenFD)
	}, nil)
}

func (d *Dispatcher) acceptCleartext(fd int) {
	cc := &clearConn{
		d:   d,
		fd:  fd,
		c:   http1.New(d.handleHTTP),
		buf: make([]byte, readBufferSize),
	}
	cc.submitRead()
}

func (d *Dispatcher) handleHTTP(req *httpproto.Request) (*httpproto.Response, error) {
	if req.Headers.Has("Upgrade", "websocket") {
		hdrs, err := http1.UpgradeToWebSocket(req)
		if err != nil {
			return httpproto.NewResponse().WithStatus(400, "Bad Request").WithBody([]byte(err.Error())), nil
		}
		resp := &httpproto.Response{StatusCode: 101, StatusText: "Switching Protocols", Headers: hdrs}
		return resp, nil
	}
	return d.App.Router().Dispatch(req)
}

func (cc *clearConn) submitRead() {
	cc.d.Reactor.ReadAsync(cc.fd, cc.buf, func(ev reactor.IOEvent) {
		if ev.Result <= 0 {
			cc.d.Reactor.CloseAsync(cc.fd)
			return
		}
		if _, err := cc.c.ProcessInput(cc.buf[:ev.Result]); err != nil {
			cc.c.WriteErrorResponse(parseErrorResponse(err))
			cc.pump()
			return
		}
		cc.pump()
	}, nil)
}

// parseErrorResponse turns a ProcessInput failure into the status line
// spec.md §7/§8 requires: 413 for a header block that overflowed the
// input buffer before end-of-headers, 400 for every other parse failure
// (malformed request line, unsupported protocol version, bad
// Content-Length).
func parseErrorResponse(err error) *httpproto.Response {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Code == api.ErrCodeResourceExhausted {
		return httpproto.NewResponse().WithStatus(413, "Request Entity Too Large").WithJSONError(apiErr.Message)
	}
	return httpproto.NewResponse().WithStatus(400, "Bad Request").WithJSONError(err.Error())
}

// pump flushes any pending output, then either upgrades the connection,
// re-arms the next read, or closes, depending on the state machine's
// post-write disposition.
func (cc *clearConn) pump() {
	if cc.c.HasPendingOutput() {
		cc.submitWrite()
		return
	}
	cc.afterFlush()
}

func (cc *clearConn) submitWrite() {
	out := cc.c.Output()
	cc.d.Reactor.WriteAsync(cc.fd, out, func(ev reactor.IOEvent) {
		if ev.Result < 0 {
			cc.d.Reactor.CloseAsync(cc.fd)
			return
		}
		cc.c.CommitOutput(int(ev.Result))
		cc.pump()
	}, nil)
}

func (cc *clearConn) afterFlush() {
	if cc.c.IsWebSocketUpgrade() {
		wsConn := websocket.New(cc.d.Reactor, cc.fd, maxWebSocketMessageSize)
		wsConn.Handler = cc.d.WSHandler
		wsConn.StartReading(make([]byte, readBufferSize))
		return
	}
	if cc.c.State() == http1.StateClosing || cc.c.State() == http1.StateError {
		cc.d.Reactor.CloseAsync(cc.fd)
		return
	}
	// A pipelined request may already be buffered in the connection;
	// parse it now instead of waiting for another readiness edge.
	if _, err := cc.c.ProcessInput(nil); err != nil {
		cc.c.WriteErrorResponse(parseErrorResponse(err))
		cc.pump()
		return
	}
	if cc.c.HasPendingOutput() {
		cc.submitWrite()
		return
	}
	cc.submitRead()
}
