// File: dispatch/websocket_blocking.go
// A blocking-net.Conn WebSocket frame loop for TLS-terminated upgrades,
// reusing websocket.Frame/Reassembler (the wire codec) without
// websocket.Connection (which is reactor-fd specific and assumes it owns
// a raw, non-blocking fd the reactor can submit reads/writes against —
// not true once crypto/tls owns the fd).
// Author: momentics <momentics@gmail.com>
// License: MIT

package dispatch

import (
	"io"

	"github.com/momentics/hioload-srv/websocket"
)

func (d *Dispatcher) serveWebSocketBlocking(conn io.ReadWriteCloser) {
	reas := websocket.NewReassembler(maxWebSocketMessageSize)
	var acc []byte
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		acc = append(acc, buf[:n]...)

		for {
			f, consumed, err := websocket.DecodeFrame(acc)
			if err != nil || consumed == 0 {
				break
			}
			acc = acc[consumed:]

			switch f.Opcode {
			case websocket.OpPing:
				reply, _ := websocket.EncodeFrame(websocket.OpPong, f.Payload, true)
				conn.Write(reply)
			case websocket.OpClose:
				reply, _ := websocket.EncodeFrame(websocket.OpClose, f.Payload, true)
				conn.Write(reply)
				return
			case websocket.OpPong:
			default:
				msg, merr := reas.Feed(f)
				if merr != nil {
					return
				}
				if msg != nil && d.WSHandler != nil {
					// nil *websocket.Connection: a TLS-terminated socket has
					// no raw fd for OutgoingBridge to submit reactor writes
					// against, so handlers on this path must not call
					// conn.Send and should reply over their own channel.
					d.WSHandler(nil, msg)
				}
			}
		}
	}
}
