// File: httpproto/message.go
// Package httpproto defines the protocol-agnostic request/response types
// shared by the HTTP/1.1, HTTP/2, and HTTP/3 connection state machines
// (spec.md §4.3-4.5), grounded on the original's Http1Response struct
// (_examples/original_source/src/cpp/http/http1_connection.h) generalized
// to carry a protocol version and a WebSocket-upgrade marker.
// Author: momentics <momentics@gmail.com>
// License: MIT

package httpproto

import (
	"encoding/json"
	"strings"
)

// Header is a case-insensitive ordered multi-map, small enough that a
// linear scan beats a map for the handful of headers a typical request
// carries (mirrors the router's registration-order linear scan choice).
type Header struct {
	keys   []string
	values []string
}

// NewHeader returns an empty Header.
func NewHeader() *Header { return &Header{} }

// Add appends a header, preserving duplicates (e.g. multiple Set-Cookie).
func (h *Header) Add(key, value string) {
	h.keys = append(h.keys, key)
	h.values = append(h.values, value)
}

// Set replaces all existing values for key with a single value.
func (h *Header) Set(key, value string) {
	h.Del(key)
	h.Add(key, value)
}

// Get returns the first value for key, case-insensitive, or "".
func (h *Header) Get(key string) string {
	for i, k := range h.keys {
		if strings.EqualFold(k, key) {
			return h.values[i]
		}
	}
	return ""
}

// Values returns every value for key, case-insensitive.
func (h *Header) Values(key string) []string {
	var out []string
	for i, k := range h.keys {
		if strings.EqualFold(k, key) {
			out = append(out, h.values[i])
		}
	}
	return out
}

// Has reports whether key's value list contains token, case-insensitive,
// treating commas as list separators (spec.md's Connection/Upgrade header
// token matching).
func (h *Header) Has(key, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h.Values(key) {
		for _, part := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(part)) == token {
				return true
			}
		}
	}
	return false
}

// Del removes every value for key, case-insensitive.
func (h *Header) Del(key string) {
	keys := h.keys[:0]
	values := h.values[:0]
	for i, k := range h.keys {
		if !strings.EqualFold(k, key) {
			keys = append(keys, k)
			values = append(values, h.values[i])
		}
	}
	h.keys, h.values = keys, values
}

// Each calls fn for every header pair in insertion order.
func (h *Header) Each(fn func(key, value string)) {
	for i, k := range h.keys {
		fn(k, h.values[i])
	}
}

// Len returns the number of header pairs stored, counting duplicates.
func (h *Header) Len() int { return len(h.keys) }

// Request is the protocol-agnostic inbound request every connection state
// machine produces once fully parsed.
type Request struct {
	Method   string
	Path     string
	Query    string
	Proto    string // "HTTP/1.0", "HTTP/1.1", "HTTP/2.0", "HTTP/3.0"
	Headers  *Header
	Body     []byte
	Params   map[string]string // populated by the router after matching
	RemoteIP string
}

// Response is what a handler builds and a connection state machine
// serializes back to the wire.
type Response struct {
	StatusCode int
	StatusText string
	Headers    *Header
	Body       []byte
}

// NewResponse returns a 200 OK response with empty headers/body, ready
// for a handler to mutate via the builder methods below.
func NewResponse() *Response {
	return &Response{StatusCode: 200, StatusText: "OK", Headers: NewHeader()}
}

func (r *Response) WithStatus(code int, text string) *Response {
	r.StatusCode, r.StatusText = code, text
	return r
}

func (r *Response) WithHeader(key, value string) *Response {
	r.Headers.Set(key, value)
	return r
}

func (r *Response) WithBody(body []byte) *Response {
	r.Body = body
	return r
}

func (r *Response) WithJSONBody(body []byte) *Response {
	r.Headers.Set("Content-Type", "application/json")
	r.Body = body
	return r
}

// WithJSONError sets an application/json body of the form {"error": msg},
// the shape spec.md §8 scenario S3 requires for a handler failure turned
// into a 500 ("500 with Content-Type: application/json and a JSON body
// indicating an internal error").
func (r *Response) WithJSONError(msg string) *Response {
	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: msg})
	return r.WithJSONBody(body)
}

// Handler processes a Request and returns the Response to send, or an
// error that the caller maps to a 4xx/5xx response (spec.md §5 handler
// facade).
type Handler func(req *Request) (*Response, error)

// Middleware wraps a Handler with cross-cutting behavior (logging, auth,
// recovery) the same way the original's app.h composes Python callback
// chains, adapted to Go function composition.
type Middleware func(next Handler) Handler

// Chain composes middlewares around terminal in registration order, so
// the first middleware registered is outermost.
func Chain(terminal Handler, mws ...Middleware) Handler {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
