// File: app/app_test.go
// Author: momentics <momentics@gmail.com>
// License: MIT

package app

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-srv/httpproto"
)

func TestAppRegistersAndDispatches(t *testing.T) {
	a := New()
	a.Get("/users/{id}", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse().WithBody([]byte(req.Params["id"])), nil
	})
	resp, err := a.Router().Dispatch(&httpproto.Request{Method: "GET", Path: "/users/7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "7" {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
}

func TestGroupPrefixAndMiddlewareIsolation(t *testing.T) {
	a := New()
	var globalHits, groupHits int
	a.Use(func(next httpproto.Handler) httpproto.Handler {
		return func(req *httpproto.Request) (*httpproto.Response, error) {
			globalHits++
			return next(req)
		}
	})
	g := a.Group("/api")
	g.Use(func(next httpproto.Handler) httpproto.Handler {
		return func(req *httpproto.Request) (*httpproto.Response, error) {
			groupHits++
			return next(req)
		}
	})
	g.Get("/ping", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse(), nil
	})
	a.Get("/outside", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse(), nil
	})

	if _, err := a.Router().Dispatch(&httpproto.Request{Method: "GET", Path: "/api/ping"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if globalHits != 1 || groupHits != 1 {
		t.Fatalf("expected 1 global and 1 group hit, got %d/%d", globalHits, groupHits)
	}

	if _, err := a.Router().Dispatch(&httpproto.Request{Method: "GET", Path: "/outside"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if globalHits != 2 || groupHits != 1 {
		t.Fatalf("expected group middleware not to run for non-group route, got %d/%d", globalHits, groupHits)
	}
}

func TestRecoverMiddlewareCatchesPanic(t *testing.T) {
	a := New()
	a.Use(Recover())
	a.Get("/boom", func(req *httpproto.Request) (*httpproto.Response, error) {
		panic("kaboom")
	})
	resp, err := a.Router().Dispatch(&httpproto.Request{Method: "GET", Path: "/boom"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	a := New()
	wantErr := errors.New("boom")
	a.Get("/err", func(req *httpproto.Request) (*httpproto.Response, error) {
		return nil, wantErr
	})
	_, err := a.Router().Dispatch(&httpproto.Request{Method: "GET", Path: "/err"})
	if err != wantErr {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}
}
