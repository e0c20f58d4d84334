// File: websocket/connection.go
// Grounded on the teacher's internal/websocket/connection.go (handler
// dispatch + keep-alive ping loop shape), adapted from a blocking
// goroutine-per-connection model to the non-blocking reactor: frames
// arrive via a ReadAsync callback and are decoded incrementally, and
// outgoing frames queue through OutgoingBridge — spec.md §4.9/§9's
// cross-thread WS response bridge — so a worker-pool goroutine handling a
// message on another thread can safely hand a response back to this
// connection's reactor thread.
// Author: momentics <momentics@gmail.com>
// License: MIT

package websocket

import (
	"time"

	"github.com/momentics/hioload-srv/api"
	"github.com/momentics/hioload-srv/internal/queue"
	"github.com/momentics/hioload-srv/reactor"
)

// MessageHandler processes one reassembled application message.
type MessageHandler func(conn *Connection, msg *Message)

const defaultBridgeCapacity = 1024

// OutgoingBridge is an MPMC queue of pending outbound frames plus the
// reactor Wake needed to make a blocked Poll notice them promptly — the
// "MPMC queue + per-reactor-thread wake pipe" spec.md calls for.
type OutgoingBridge struct {
	queue *queue.MPMC[[]byte]
	r     *reactor.Reactor
}

// NewOutgoingBridge constructs a bridge that wakes r whenever a frame is
// pushed from off-thread.
func NewOutgoingBridge(r *reactor.Reactor) *OutgoingBridge {
	return &OutgoingBridge{queue: queue.NewMPMC[[]byte](defaultBridgeCapacity), r: r}
}

// Push enqueues an already-encoded frame and wakes the owning reactor
// thread. Safe to call from any goroutine, including worker-pool threads
// handling a message for this connection.
func (b *OutgoingBridge) Push(frame []byte) bool {
	ok := b.queue.TryPush(frame)
	if ok {
		b.r.Wake()
	}
	return ok
}

func (b *OutgoingBridge) drainOne() ([]byte, bool) {
	return b.queue.TryPop()
}

// Connection is one post-upgrade WebSocket connection driven by a single
// reactor thread.
type Connection struct {
	ID  uint64
	r   *reactor.Reactor
	fd  int
	in  []byte // unconsumed bytes from the last read
	reas *Reassembler

	Bridge  *OutgoingBridge
	Handler MessageHandler

	writing bool
	pendingWrite []byte
	writeOffset  int

	lastPing time.Time
	closed   bool
}

// New constructs a Connection over fd, owned by reactor r, and assigns it
// a process-unique ID (see Registry) so off-thread worker-pool responses
// naming this connection by id can be routed back to it.
func New(r *reactor.Reactor, fd int, maxMessageSize int) *Connection {
	c := &Connection{ID: nextID(), r: r, fd: fd, reas: NewReassembler(maxMessageSize)}
	c.Bridge = NewOutgoingBridge(r)
	globalRegistry.Register(c)
	return c
}

// markClosed transitions the connection to closed exactly once, removing
// it from the default Registry so no later worker-pool response can find
// a stale entry.
func (c *Connection) markClosed() {
	if c.closed {
		return
	}
	c.closed = true
	globalRegistry.Unregister(c)
}

// StartReading submits the first read; subsequent reads are resubmitted
// from within the callback (edge-triggered draining, spec.md §4.9).
func (c *Connection) StartReading(buf []byte) {
	c.submitRead(buf)
}

func (c *Connection) submitRead(buf []byte) {
	c.r.ReadAsync(c.fd, buf, func(ev reactor.IOEvent) {
		if ev.Result <= 0 {
			c.markClosed()
			return
		}
		c.onData(buf[:ev.Result])
		if !c.closed {
			c.submitRead(buf[:cap(buf)])
		}
	}, nil)
}

func (c *Connection) onData(data []byte) {
	c.in = append(c.in, data...)
	for {
		f, n, err := DecodeFrame(c.in)
		if err != nil {
			c.sendClose(1009, "frame too large")
			c.markClosed()
			return
		}
		if f == nil {
			return
		}
		c.in = c.in[n:]
		c.handleFrame(f)
		if c.closed {
			return
		}
	}
}

func (c *Connection) handleFrame(f *Frame) {
	switch f.Opcode {
	case OpPing:
		c.enqueueLocal(OpPong, f.Payload)
	case OpPong:
		// liveness acknowledged; nothing further to do.
	case OpClose:
		c.enqueueLocal(OpClose, f.Payload)
		c.markClosed()
	default:
		msg, err := c.reas.Feed(f)
		if err != nil {
			c.sendClose(1002, "protocol error")
			c.markClosed()
			return
		}
		if msg != nil && c.Handler != nil {
			c.Handler(c, msg)
		}
	}
}

// Send encodes and queues an application message for delivery, draining
// immediately if the reactor thread is idle.
func (c *Connection) Send(opcode Opcode, payload []byte) error {
	frame, err := EncodeFrame(opcode, payload, true)
	if err != nil {
		return err
	}
	if !c.Bridge.Push(frame) {
		return api.ErrQueueFull
	}
	c.drainOutgoing()
	return nil
}

func (c *Connection) enqueueLocal(opcode Opcode, payload []byte) {
	frame, err := EncodeFrame(opcode, payload, true)
	if err != nil {
		return
	}
	c.Bridge.Push(frame)
	c.drainOutgoing()
}

func (c *Connection) sendClose(code uint16, reason string) {
	body := make([]byte, 2+len(reason))
	body[0], body[1] = byte(code>>8), byte(code)
	copy(body[2:], reason)
	c.enqueueLocal(OpClose, body)
}

// drainOutgoing submits one WriteAsync if one isn't already in flight,
// resubmitting for the next queued frame from within the callback —
// edge-triggered draining so a blocked reactor thread never busy-polls
// an empty bridge.
func (c *Connection) drainOutgoing() {
	if c.writing {
		return
	}
	frame, ok := c.Bridge.drainOne()
	if !ok {
		return
	}
	c.pendingWrite = frame
	c.writeOffset = 0
	c.writing = true
	c.submitWrite()
}

func (c *Connection) submitWrite() {
	c.r.WriteAsync(c.fd, c.pendingWrite[c.writeOffset:], func(ev reactor.IOEvent) {
		if ev.Result < 0 {
			c.markClosed()
			c.writing = false
			return
		}
		c.writeOffset += int(ev.Result)
		if c.writeOffset < len(c.pendingWrite) {
			c.submitWrite()
			return
		}
		c.writing = false
		c.drainOutgoing()
	}, nil)
}

// Closed reports whether the connection has entered a terminal state.
func (c *Connection) Closed() bool { return c.closed }

// Close tears down the underlying fd.
func (c *Connection) Close() error {
	c.markClosed()
	if c.r.CloseAsync(c.fd) != 0 {
		return api.ErrConnClosed
	}
	return nil
}

// CloseWithCode queues a close frame carrying code and reason, then marks
// the connection closed — the path a worker-pool WSClose instruction
// drives (spec.md §3 WebSocketResponse "close" variant). The fd itself is
// torn down once the close frame drains, the same as a peer-initiated
// close (see handleFrame's OpClose branch).
func (c *Connection) CloseWithCode(code uint16, reason string) error {
	if c.closed {
		return nil
	}
	c.sendClose(code, reason)
	c.markClosed()
	return nil
}
