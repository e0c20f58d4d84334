// File: httpproto/http1/connection.go
// Package http1 implements the HTTP/1.0 and HTTP/1.1 connection state
// machine spec.md §4.3 describes, grounded on
// _examples/original_source/src/cpp/http/http1_connection.h's
// Http1State/Http1Connection shape (reading-request → reading-body →
// processing → writing-response → keepalive/closing) and the teacher's
// protocol/upgrader.go for the WebSocket upgrade handshake this connection
// hands off to the websocket package.
// Author: momentics <momentics@gmail.com>
// License: MIT

package http1

import (
	"bufio"
	"bytes"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/momentics/hioload-srv/api"
	"github.com/momentics/hioload-srv/httpproto"
)

// State mirrors the original's Http1State.
type State int

const (
	StateReadingRequest State = iota
	StateReadingBody
	StateProcessing
	StateWritingResponse
	StateKeepAlive
	StateClosing
	StateError
)

func (s State) String() string {
	switch s {
	case StateReadingRequest:
		return "reading_request"
	case StateReadingBody:
		return "reading_body"
	case StateProcessing:
		return "processing"
	case StateWritingResponse:
		return "writing_response"
	case StateKeepAlive:
		return "keepalive"
	case StateClosing:
		return "closing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const maxHeaderBlockSize = 64 * 1024

// Connection drives one HTTP/1.x TCP connection's request/response
// lifecycle. It is not safe for concurrent use: one reactor thread feeds
// it via ProcessInput.
type Connection struct {
	state State

	input         bytes.Buffer
	req           *httpproto.Request
	contentLength int
	bodyRead      int

	output       []byte
	outputOffset int

	keepAlive      bool
	requestsServed int
	errorMessage   string

	pendingWSUpgrade bool
	wsAcceptHeaders  *httpproto.Header

	Handler httpproto.Handler
}

// New constructs a Connection bound to handler.
func New(handler httpproto.Handler) *Connection {
	return &Connection{state: StateReadingRequest, keepAlive: true, Handler: handler}
}

func (c *Connection) State() State { return c.state }

func (c *Connection) ShouldKeepAlive() bool {
	return c.keepAlive && c.state != StateError && c.state != StateClosing
}

func (c *Connection) HasPendingOutput() bool {
	return c.outputOffset < len(c.output)
}

func (c *Connection) IsWebSocketUpgrade() bool { return c.pendingWSUpgrade }

// WebSocketAcceptHeaders returns the 101 response headers computed during
// the upgrade handshake, for the caller to hand the connection off to the
// websocket package after flushing this response.
func (c *Connection) WebSocketAcceptHeaders() *httpproto.Header { return c.wsAcceptHeaders }

// ProcessInput feeds newly-read bytes into the parser. It returns the
// number of bytes consumed by this call. The Connection buffers all of
// data itself and keeps unconsumed bytes (a partial request, or a
// pipelined one) for later calls, so callers pass each newly-read chunk
// exactly once; ProcessInput(nil) parses what is already buffered.
func (c *Connection) ProcessInput(data []byte) (int, error) {
	c.input.Write(data)
	consumed := 0

	switch c.state {
	case StateReadingRequest:
		n, err := c.tryParseRequestLineAndHeaders()
		consumed += n
		if err != nil {
			return consumed, err
		}
		if c.req == nil {
			return consumed, nil // header block incomplete, wait for more
		}
		fallthrough
	case StateReadingBody:
		if c.state == StateReadingRequest {
			c.state = StateReadingBody
		}
		n := c.drainBody()
		consumed += n
		if c.bodyRead < c.contentLength {
			return consumed, nil
		}
		c.state = StateProcessing
		fallthrough
	case StateProcessing:
		c.handleRequest()
	}

	return consumed, nil
}

func (c *Connection) tryParseRequestLineAndHeaders() (int, error) {
	buf := c.input.Bytes()
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		if c.input.Len() > maxHeaderBlockSize {
			c.state = StateError
			c.errorMessage = "request header block too large"
			return 0, api.NewError(api.ErrCodeResourceExhausted, c.errorMessage)
		}
		return 0, nil
	}
	headerBlock := buf[:idx+4]

	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(headerBlock)))
	line, err := tp.ReadLine()
	if err != nil {
		c.state = StateError
		c.errorMessage = "malformed request line"
		return 0, api.NewError(api.ErrCodeParse, c.errorMessage)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		c.state = StateError
		c.errorMessage = "malformed request line"
		return 0, api.NewError(api.ErrCodeParse, c.errorMessage)
	}
	method, target, proto := parts[0], parts[1], parts[2]
	if proto != "HTTP/1.0" && proto != "HTTP/1.1" {
		c.state = StateError
		c.errorMessage = fmt.Sprintf("unsupported protocol %q", proto)
		return 0, api.NewError(api.ErrCodeParse, c.errorMessage)
	}

	mimeHeaders, err := tp.ReadMIMEHeader()
	if err != nil && len(mimeHeaders) == 0 {
		c.state = StateError
		c.errorMessage = "malformed headers"
		return 0, api.NewError(api.ErrCodeParse, c.errorMessage)
	}

	headers := httpproto.NewHeader()
	for k, vs := range mimeHeaders {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}

	path, query, _ := strings.Cut(target, "?")

	c.req = &httpproto.Request{
		Method: method, Path: path, Query: query, Proto: proto, Headers: headers,
	}
	c.keepAlive = c.shouldKeepAliveFromRequest(proto, headers)

	if cl := headers.Get("Content-Length"); cl != "" {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			c.state = StateError
			c.errorMessage = "invalid Content-Length"
			return 0, api.NewError(api.ErrCodeParse, c.errorMessage)
		}
		c.contentLength = n
	}

	c.input.Next(idx + 4)
	return idx + 4, nil
}

func (c *Connection) drainBody() int {
	if c.contentLength == 0 {
		return 0
	}
	need := c.contentLength - c.bodyRead
	avail := c.input.Len()
	take := need
	if avail < take {
		take = avail
	}
	if take <= 0 {
		return 0
	}
	chunk := make([]byte, take)
	n, _ := c.input.Read(chunk)
	c.req.Body = append(c.req.Body, chunk[:n]...)
	c.bodyRead += n
	return n
}

func (c *Connection) handleRequest() {
	req := c.req
	var resp *httpproto.Response
	var err error
	if c.Handler != nil {
		resp, err = c.Handler(req)
	}
	if err != nil {
		resp = httpproto.NewResponse().WithStatus(500, "Internal Server Error").
			WithJSONError(err.Error())
	}
	if resp == nil {
		resp = httpproto.NewResponse().WithStatus(404, "Not Found")
	}
	if resp.StatusCode == 101 {
		c.pendingWSUpgrade = true
		c.wsAcceptHeaders = resp.Headers
	}
	c.buildResponseBytes(resp)
	c.requestsServed++
	c.state = StateWritingResponse
}

func (c *Connection) shouldKeepAliveFromRequest(proto string, h *httpproto.Header) bool {
	if h.Has("Connection", "close") {
		return false
	}
	if proto == "HTTP/1.0" {
		return h.Has("Connection", "keep-alive")
	}
	return true
}

func (c *Connection) buildResponseBytes(resp *httpproto.Response) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", resp.StatusCode, resp.StatusText)
	if resp.Headers.Get("Content-Length") == "" && resp.StatusCode != 101 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(resp.Body))
	}
	if resp.StatusCode != 101 {
		if !c.keepAlive {
			b.WriteString("Connection: close\r\n")
		} else {
			b.WriteString("Connection: keep-alive\r\n")
		}
	}
	resp.Headers.Each(func(k, v string) {
		fmt.Fprintf(&b, "%s: %s\r\n", k, v)
	})
	b.WriteString("\r\n")
	b.Write(resp.Body)
	c.output = b.Bytes()
	c.outputOffset = 0
}

// Output returns the pending response bytes not yet committed.
func (c *Connection) Output() []byte {
	return c.output[c.outputOffset:]
}

// CommitOutput advances the output cursor by n bytes successfully written.
func (c *Connection) CommitOutput(n int) {
	c.outputOffset += n
	if c.outputOffset >= len(c.output) {
		if c.ShouldKeepAlive() && !c.pendingWSUpgrade {
			c.resetForNextRequest()
		} else {
			c.state = StateClosing
		}
	}
}

func (c *Connection) resetForNextRequest() {
	c.state = StateReadingRequest
	c.req = nil
	c.contentLength = 0
	c.bodyRead = 0
	c.output = nil
	c.outputOffset = 0
	c.pendingWSUpgrade = false
	c.wsAcceptHeaders = nil
	// Any bytes already buffered past the previous request (pipelining)
	// stay in c.input for the next ProcessInput call to consume.
}

// WriteErrorResponse queues resp as the connection's output and marks the
// connection for closing once it has been flushed, for callers that need
// to report a parse-time failure (malformed request line, oversized
// header block) the state machine itself never reached StateProcessing
// for.
func (c *Connection) WriteErrorResponse(resp *httpproto.Response) {
	c.keepAlive = false
	c.buildResponseBytes(resp)
	c.state = StateWritingResponse
}

// Error returns the error message recorded when State is StateError.
func (c *Connection) Error() string { return c.errorMessage }

// RequestsServed reports how many requests this connection has completed,
// for keep-alive accounting / metrics.
func (c *Connection) RequestsServed() int { return c.requestsServed }
