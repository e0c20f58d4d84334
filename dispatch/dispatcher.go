// File: dispatch/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package dispatch

import (
	"github.com/momentics/hioload-srv/app"
	"github.com/momentics/hioload-srv/coro"
	"github.com/momentics/hioload-srv/reactor"
	"github.com/momentics/hioload-srv/websocket"
)

// Dispatcher owns every listener and routes accepted connections to the
// right protocol connection state machine (spec.md §3 Connection
// variant: HTTP/1.1, HTTP/2, HTTP/3, or post-upgrade WebSocket).
type Dispatcher struct {
	Reactor   *reactor.Reactor
	App       *app.App
	Resumer   *coro.Resumer
	WSHandler websocket.MessageHandler

	listeners []func() error
}

// New constructs a Dispatcher. resumer schedules HTTP/2 per-stream
// coroutines; wsHandler processes decoded WebSocket messages.
func New(r *reactor.Reactor, a *app.App, resumer *coro.Resumer, wsHandler websocket.MessageHandler) *Dispatcher {
	return &Dispatcher{Reactor: r, App: a, Resumer: resumer, WSHandler: wsHandler}
}

// Close releases every listener's resources. Call after the reactor's
// Run loop has stopped.
func (d *Dispatcher) Close() error {
	var first error
	for _, closeFn := range d.listeners {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
