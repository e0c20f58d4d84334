// File: router/router.go
// Package router implements the FastAPI-style path pattern router spec.md
// §5 describes: segment-based literal/{param} compilation, method-indexed
// registration-order linear scan, no regex/wildcard support.
//
// Grounded on _examples/original_source/src/cpp/http/parameter_extractor.h
// (CompiledRoutePattern: pre-split segments + positional PathParam list)
// and route_metadata.h's RouteRegistry (method+path match returning
// metadata), generalized from Python-callable handler storage to
// httpproto.Handler.
// Author: momentics <momentics@gmail.com>
// License: MIT

package router

import (
	"strings"

	"github.com/momentics/hioload-srv/httpproto"
)

// pathParam records which segment index binds to which parameter name.
type pathParam struct {
	name     string
	position int
}

// CompiledPattern is a pre-split route pattern ready for fast matching.
type CompiledPattern struct {
	pattern  string
	segments []string
	params   []pathParam
}

// Compile splits pattern into segments and records which segments are
// {name} placeholders. No regex, no wildcards — an unmatched segment
// count or a literal mismatch simply fails to match (spec.md Non-goal).
func Compile(pattern string) *CompiledPattern {
	raw := strings.Split(strings.Trim(pattern, "/"), "/")
	segments := make([]string, 0, len(raw))
	var params []pathParam
	for i, seg := range raw {
		segments = append(segments, seg)
		if len(seg) >= 2 && seg[0] == '{' && seg[len(seg)-1] == '}' {
			params = append(params, pathParam{name: seg[1 : len(seg)-1], position: i})
		}
	}
	return &CompiledPattern{pattern: pattern, segments: segments, params: params}
}

// Matches reports whether path matches this pattern's segment shape.
func (c *CompiledPattern) Matches(path string) bool {
	_, ok := c.extract(path)
	return ok
}

// Extract matches path against the pattern and returns the bound
// parameter values, or ok=false if the segment counts or literals
// don't line up.
func (c *CompiledPattern) Extract(path string) (map[string]string, bool) {
	return c.extract(path)
}

func (c *CompiledPattern) extract(path string) (map[string]string, bool) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) != len(c.segments) {
		return nil, false
	}
	var params map[string]string
	paramIdx := 0
	for i, pat := range c.segments {
		isParam := paramIdx < len(c.params) && c.params[paramIdx].position == i
		if isParam {
			if params == nil {
				params = make(map[string]string, len(c.params))
			}
			params[c.params[paramIdx].name] = segs[i]
			paramIdx++
			continue
		}
		if pat != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// Pattern returns the original, uncompiled pattern string.
func (c *CompiledPattern) Pattern() string { return c.pattern }

type route struct {
	method  string
	pattern *CompiledPattern
	handler httpproto.Handler
}

// Router stores routes indexed by method and matches them in registration
// order — the first route whose compiled pattern matches wins, exactly
// like the original's RouteRegistry::match linear scan.
type Router struct {
	byMethod map[string][]*route
}

// New returns an empty Router.
func New() *Router {
	return &Router{byMethod: make(map[string][]*route)}
}

// Handle registers handler for method+pattern.
func (r *Router) Handle(method, pattern string, handler httpproto.Handler) {
	r.byMethod[method] = append(r.byMethod[method], &route{
		method: method, pattern: Compile(pattern), handler: handler,
	})
}

func (r *Router) Get(pattern string, h httpproto.Handler)    { r.Handle("GET", pattern, h) }
func (r *Router) Post(pattern string, h httpproto.Handler)   { r.Handle("POST", pattern, h) }
func (r *Router) Put(pattern string, h httpproto.Handler)    { r.Handle("PUT", pattern, h) }
func (r *Router) Patch(pattern string, h httpproto.Handler)  { r.Handle("PATCH", pattern, h) }
func (r *Router) Delete(pattern string, h httpproto.Handler) { r.Handle("DELETE", pattern, h) }

// Match finds the first registered route for method whose pattern matches
// path, returning the handler and extracted path parameters.
func (r *Router) Match(method, path string) (httpproto.Handler, map[string]string, bool) {
	for _, rt := range r.byMethod[method] {
		if params, ok := rt.pattern.Extract(path); ok {
			return rt.handler, params, true
		}
	}
	return nil, nil, false
}

// Dispatch finds and invokes the matching handler, populating
// req.Params, or returns a 404 Response if nothing matches.
func (r *Router) Dispatch(req *httpproto.Request) (*httpproto.Response, error) {
	handler, params, ok := r.Match(req.Method, req.Path)
	if !ok {
		return httpproto.NewResponse().WithStatus(404, "Not Found"), nil
	}
	req.Params = params
	return handler(req)
}
