// File: httpproto/http1/upgrade.go
// Grounded directly on the teacher's protocol/upgrader.go: same RFC6455
// validation and Sec-WebSocket-Accept computation, adapted from
// net/http.Request to httpproto.Request/Header.
// Author: momentics <momentics@gmail.com>
// License: MIT

package http1

import (
	"crypto/sha1"
	"encoding/base64"

	"github.com/momentics/hioload-srv/api"
	"github.com/momentics/hioload-srv/httpproto"
)

// MaxHandshakeHeadersSize caps the combined header size considered during
// upgrade validation, mitigating header-injection/memory-exhaustion
// attempts (teacher's same-named constant).
const MaxHandshakeHeadersSize = 8192

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// UpgradeToWebSocket validates req as a WebSocket handshake per RFC6455
// and returns the 101 response headers, or an error describing which
// requirement failed.
func UpgradeToWebSocket(req *httpproto.Request) (*httpproto.Header, error) {
	total := 0
	req.Headers.Each(func(k, v string) { total += len(k) + len(v) })
	if total > MaxHandshakeHeadersSize {
		return nil, api.NewError(api.ErrCodeParse, "handshake headers too large")
	}

	if !req.Headers.Has("Connection", "Upgrade") || !req.Headers.Has("Upgrade", "websocket") {
		return nil, api.NewError(api.ErrCodeParse, "invalid upgrade headers")
	}

	key := req.Headers.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, api.NewError(api.ErrCodeParse, "missing Sec-WebSocket-Key header")
	}

	if req.Headers.Get("Sec-WebSocket-Version") != "13" {
		return nil, api.NewError(api.ErrCodeParse, "unsupported WebSocket version; only '13' is supported")
	}

	h := sha1.New()
	h.Write([]byte(key + websocketGUID))
	accept := base64.StdEncoding.EncodeToString(h.Sum(nil))

	resp := httpproto.NewHeader()
	resp.Set("Upgrade", "websocket")
	resp.Set("Connection", "Upgrade")
	resp.Set("Sec-WebSocket-Accept", accept)
	if proto := req.Headers.Get("Sec-WebSocket-Protocol"); proto != "" {
		resp.Set("Sec-WebSocket-Protocol", proto)
	}

	return resp, nil
}
