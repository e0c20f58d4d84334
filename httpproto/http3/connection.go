// File: httpproto/http3/connection.go
// Package http3 implements the HTTP/3 connection and request-stream
// handling spec.md §4.5 describes: one QUIC connection carries many
// independent bidirectional streams, each stream is one request/response
// exchange framed per RFC 9114 (varint type + varint length + payload),
// and header (de)compression uses QPACK instead of HPACK.
//
// REDESIGN: the original groups in-flight QUIC connections by a
// fixed-8-byte destination connection ID
// (_examples/original_source/src/cpp/quic — see spec.md's redesign flag
// on this assumption). RFC 9000 connection IDs are variable length (0-20
// bytes), so a fixed-width table silently misroutes or drops connections
// negotiated with a different DCID length. quic-go already demultiplexes
// packets to the correct quic.Connection internally before handing one
// to Accept, so this package does not maintain a DCID table at all —
// connections are tracked by the *quic.Conn Go value itself, sidestepping
// the bug class entirely instead of reproducing a fixed-width table with
// a larger size.
// Author: momentics <momentics@gmail.com>
// License: MIT

package http3

import (
	"context"
	"crypto/tls"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/quic-go/qpack"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/quicvarint"

	"github.com/momentics/hioload-srv/api"
	"github.com/momentics/hioload-srv/coro"
	"github.com/momentics/hioload-srv/httpproto"
)

// ALPNProto is the ALPN token QUIC TLS negotiates for HTTP/3.
const ALPNProto = "h3"

const (
	frameTypeData    = 0x0
	frameTypeHeaders = 0x1
)

// NewTLSConfig returns a tls.Config advertising the h3 ALPN token, for
// use with quic.Listen alongside the existing tlsadapter certificate
// material.
func NewTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProto},
		MinVersion:   tls.VersionTLS13,
	}
}

// Listener accepts QUIC connections and dispatches each request stream
// to handler.
type Listener struct {
	ql      *quic.Listener
	resumer *coro.Resumer
	Handler httpproto.Handler
}

// Listen binds addr over UDP and returns an http3 Listener.
func Listen(addr string, tlsConf *tls.Config, resumer *coro.Resumer, handler httpproto.Handler) (*Listener, error) {
	ql, err := quic.ListenAddr(addr, tlsConf, &quic.Config{ConnectionIDGenerator: newUUIDConnectionIDGenerator()})
	if err != nil {
		return nil, err
	}
	return &Listener{ql: ql, resumer: resumer, Handler: handler}, nil
}

// uuidConnectionIDGenerator sources local QUIC connection IDs from
// uuid.New() instead of quic-go's default crypto/rand draw — both are
// unpredictable 16-byte values, but reusing the same random-id primitive
// the rest of this module already depends on keeps one fewer source of
// randomness to reason about (spec.md §9's DCID redesign note: connection
// identity here is whatever quic-go's own demultiplexing uses, never a
// fixed-width table this package maintains itself).
type uuidConnectionIDGenerator struct{}

func newUUIDConnectionIDGenerator() *uuidConnectionIDGenerator {
	return &uuidConnectionIDGenerator{}
}

func (uuidConnectionIDGenerator) GenerateConnectionID() (quic.ConnectionID, error) {
	id := uuid.New()
	return quic.ConnectionIDFromBytes(id[:]), nil
}

func (uuidConnectionIDGenerator) ConnectionIDLen() int {
	return 16
}

// Serve accepts connections until ctx is cancelled, handling each in its
// own goroutine — the reactor/epoll model this codebase uses elsewhere
// doesn't apply here since QUIC's userspace socket multiplexing is
// already handled inside quic-go's own internal event loop.
func (l *Listener) Serve(ctx context.Context) error {
	for {
		conn, err := l.ql.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go l.handleStream(stream)
	}
}

func (l *Listener) handleStream(stream *quic.Stream) {
	req, err := readRequest(stream)
	if err != nil {
		stream.Close()
		return
	}

	handler := l.Handler
	coro.NewTask[struct{}](l.resumer, func(t *coro.Task[struct{}]) (struct{}, error) {
		defer stream.Close()
		resp, herr := handler(req)
		if herr != nil {
			resp = httpproto.NewResponse().WithStatus(500, "Internal Server Error").WithJSONError(herr.Error())
		}
		if resp == nil {
			resp = httpproto.NewResponse().WithStatus(404, "Not Found")
		}
		if err := writeResponse(stream, resp); err != nil {
			log.Printf("http3: write response failed: %v", err)
		}
		return struct{}{}, nil
	})
}

func readRequest(stream *quic.Stream) (*httpproto.Request, error) {
	br := quicvarint.NewReader(stream)

	ft, err := quicvarint.Read(br)
	if err != nil {
		return nil, err
	}
	if ft != frameTypeHeaders {
		return nil, api.NewError(api.ErrCodeParse, "http3: expected HEADERS frame first")
	}
	flen, err := quicvarint.Read(br)
	if err != nil {
		return nil, err
	}
	headerBlock := make([]byte, flen)
	if _, err := io.ReadFull(br, headerBlock); err != nil {
		return nil, err
	}

	req := &httpproto.Request{Headers: httpproto.NewHeader(), Proto: "HTTP/3.0"}
	dec := qpack.NewDecoder(func(f qpack.HeaderField) {
		switch f.Name {
		case ":method":
			req.Method = f.Value
		case ":path":
			req.Path = f.Value
		default:
			req.Headers.Add(f.Name, f.Value)
		}
	})
	if _, err := dec.Write(headerBlock); err != nil {
		return nil, err
	}

	// Remaining DATA frames (if any) form the body; absence of a frame
	// before EOF means an empty body.
	for {
		ft, err := quicvarint.Read(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		flen, err := quicvarint.Read(br)
		if err != nil {
			return nil, err
		}
		chunk := make([]byte, flen)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		if ft == frameTypeData {
			req.Body = append(req.Body, chunk...)
		}
	}
	return req, nil
}

func writeResponse(stream *quic.Stream, resp *httpproto.Response) error {
	var headerBlock []byte
	enc := qpack.NewEncoder(&byteSliceWriter{dst: &headerBlock})
	enc.WriteField(qpack.HeaderField{Name: ":status", Value: statusString(resp.StatusCode)})
	resp.Headers.Each(func(k, v string) {
		enc.WriteField(qpack.HeaderField{Name: k, Value: v})
	})

	out := quicvarint.Append(nil, frameTypeHeaders)
	out = quicvarint.Append(out, uint64(len(headerBlock)))
	out = append(out, headerBlock...)

	if len(resp.Body) > 0 {
		out = quicvarint.Append(out, frameTypeData)
		out = quicvarint.Append(out, uint64(len(resp.Body)))
		out = append(out, resp.Body...)
	}
	_, err := stream.Write(out)
	return err
}

type byteSliceWriter struct{ dst *[]byte }

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	*w.dst = append(*w.dst, p...)
	return len(p), nil
}

func statusString(code int) string {
	const digits = "0123456789"
	if code < 100 || code > 999 {
		return "500"
	}
	return string([]byte{digits[code/100], digits[(code/10)%10], digits[code%10]})
}
