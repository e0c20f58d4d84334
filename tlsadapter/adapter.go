// File: tlsadapter/adapter.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package tlsadapter

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/momentics/hioload-srv/api"
	"golang.org/x/crypto/acme/autocert"
)

// ALPN protocol identifiers the dispatcher switches on (spec.md §4.2).
const (
	ProtoHTTP2 = "h2"
	ProtoHTTP1 = "http/1.1"
)

// NewServerConfig builds a *tls.Config advertising h2 and http/1.1 via
// ALPN, in that preference order so a negotiating client that supports
// both lands on HTTP/2.
func NewServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ProtoHTTP2, ProtoHTTP1},
		MinVersion:   tls.VersionTLS12,
	}
}

// NewAutocertConfig builds a *tls.Config backed by Let's Encrypt via
// golang.org/x/crypto/acme/autocert, for deployments that want managed
// certificates instead of a static cert.Certificate (the domain-stack
// expansion's autocert wiring — see SPEC_FULL.md's DOMAIN STACK section).
func NewAutocertConfig(cacheDir string, hosts ...string) *tls.Config {
	mgr := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(hosts...),
		Cache:      autocert.DirCache(cacheDir),
	}
	cfg := mgr.TLSConfig()
	cfg.NextProtos = append([]string{ProtoHTTP2, ProtoHTTP1}, cfg.NextProtos...)
	return cfg
}

// Adapter performs a server-side TLS handshake over a ReactorConn and
// reports the negotiated ALPN protocol for the dispatcher to switch on.
type Adapter struct {
	conn   *tls.Conn
	plain  *ReactorConn
	config *tls.Config
}

// NewAdapter constructs an Adapter ready to Handshake.
func NewAdapter(plain *ReactorConn, config *tls.Config) *Adapter {
	return &Adapter{plain: plain, config: config, conn: tls.Server(plain, config)}
}

// Handshake performs the TLS handshake, honoring ctx cancellation.
func (a *Adapter) Handshake(ctx context.Context) error {
	if err := a.conn.HandshakeContext(ctx); err != nil {
		return api.NewError(api.ErrCodeIO, "tls handshake failed").WithContext("cause", err.Error())
	}
	return nil
}

// NegotiatedProtocol returns the ALPN protocol chosen during Handshake,
// or "" if the peer offered none (spec.md: dispatcher falls back to
// HTTP/1.1 cleartext semantics when ALPN is absent).
func (a *Adapter) NegotiatedProtocol() string {
	return a.conn.ConnectionState().NegotiatedProtocol
}

// Conn returns the negotiated connection as a net.Conn for the chosen
// protocol's connection state machine to read/write plaintext through.
func (a *Adapter) Conn() net.Conn { return a.conn }
