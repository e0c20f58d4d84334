// File: tlsadapter/adapter_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package tlsadapter

import (
	"crypto/tls"
	"testing"
)

func TestNewServerConfigAdvertisesALPNInOrder(t *testing.T) {
	cfg := NewServerConfig(tls.Certificate{})
	if len(cfg.NextProtos) != 2 || cfg.NextProtos[0] != ProtoHTTP2 || cfg.NextProtos[1] != ProtoHTTP1 {
		t.Fatalf("unexpected NextProtos: %v", cfg.NextProtos)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Fatalf("expected MinVersion TLS1.2, got %v", cfg.MinVersion)
	}
}
