// File: router/router_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package router

import (
	"testing"

	"github.com/momentics/hioload-srv/httpproto"
)

func TestCompilePatternLiteralMatch(t *testing.T) {
	p := Compile("/users/list")
	if !p.Matches("/users/list") {
		t.Fatal("expected literal match")
	}
	if p.Matches("/users/other") {
		t.Fatal("expected literal mismatch to fail")
	}
}

func TestCompilePatternExtractsParams(t *testing.T) {
	p := Compile("/users/{user_id}/posts/{post_id}")
	params, ok := p.Extract("/users/42/posts/7")
	if !ok {
		t.Fatal("expected match")
	}
	if params["user_id"] != "42" || params["post_id"] != "7" {
		t.Fatalf("unexpected params: %+v", params)
	}
}

func TestSegmentCountMismatchFails(t *testing.T) {
	p := Compile("/a/{b}")
	if p.Matches("/a/b/c") {
		t.Fatal("expected segment-count mismatch to fail")
	}
}

func TestRouterRegistrationOrderWins(t *testing.T) {
	r := New()
	r.Get("/x/{id}", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse().WithBody([]byte("generic")), nil
	})
	r.Get("/x/literal", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse().WithBody([]byte("literal")), nil
	})

	// Both patterns match "/x/literal"; registration order means the
	// {id} route (registered first) wins, matching the original's
	// linear-scan-in-registration-order semantics (no longest-match).
	resp, err := r.Dispatch(&httpproto.Request{Method: "GET", Path: "/x/literal"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "generic" {
		t.Fatalf("expected first-registered route to win, got %q", resp.Body)
	}
}

func TestRouterNotFound(t *testing.T) {
	r := New()
	resp, _ := r.Dispatch(&httpproto.Request{Method: "GET", Path: "/missing"})
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRouterMethodIsolation(t *testing.T) {
	r := New()
	r.Post("/items", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse(), nil
	})
	if _, _, ok := r.Match("GET", "/items"); ok {
		t.Fatal("expected GET not to match a POST-only route")
	}
}
