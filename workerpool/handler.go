// File: workerpool/handler.go
// Bridges the worker-pool dispatch path into the protocol-agnostic
// httpproto.Handler contract, so an app.App route can hand a request to a
// worker the same way it would hand it to an in-process function
// (spec.md §4.12's "alternative handler binding" and §2's end-to-end
// data flow: handler dispatch -> worker-pool transport -> coroutine
// suspends -> worker reply -> pending table -> reactor woken -> coroutine
// resumed -> response serialized).
// Author: momentics <momentics@gmail.com>
// License: MIT

package workerpool

import (
	"context"

	"github.com/momentics/hioload-srv/httpproto"
)

// Handler returns an httpproto.Handler that forwards every matching
// request to a worker as a Call(module, function) invocation, translating
// the httpproto.Request into the Args map a worker's function receives
// and the worker's Response back into an httpproto.Response. The request
// body, method, path, query, and params are all carried across so a
// worker function sees the same inputs an in-process handler would.
func (p *Pool) Handler(module, function string) httpproto.Handler {
	return func(req *httpproto.Request) (*httpproto.Response, error) {
		args := map[string]any{
			"method": req.Method,
			"path":   req.Path,
			"query":  req.Query,
			"body":   string(req.Body),
		}
		if len(req.Params) > 0 {
			params := make(map[string]any, len(req.Params))
			for k, v := range req.Params {
				params[k] = v
			}
			args["params"] = params
		}

		resp, err := p.CallContext(context.Background(), &Request{
			Module:   module,
			Function: function,
			Args:     args,
		})
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return httpproto.NewResponse().WithStatus(500, "Internal Server Error").
				WithJSONError(resp.ErrMessage), nil
		}

		out := httpproto.NewResponse()
		if resp.StatusCode != 0 {
			out.WithStatus(int(resp.StatusCode), "OK")
		}
		return out.WithJSONBody(resp.Body), nil
	}
}
