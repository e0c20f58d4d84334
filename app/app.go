// File: app/app.go
// Package app provides the FastAPI-style handler facade spec.md §5
// describes: method/pattern registration delegating to router.Router,
// middleware chain composition, and route groups with a shared prefix
// and shared middleware stack.
//
// Grounded on _examples/original_source/src/cpp/http/app.h's App/
// RouteBuilder fluent interface, adapted from C++ method chaining to Go's
// more idiomatic "returns nothing, call again" registration style the
// teacher's facade/hioload.go uses for RegisterHandler/RegisterReloadHook.
// Author: momentics <momentics@gmail.com>
// License: MIT

package app

import (
	"fmt"
	"log"

	"github.com/momentics/hioload-srv/httpproto"
	"github.com/momentics/hioload-srv/router"
)

// App is the top-level handler facade: one Router plus a global
// middleware stack applied to every registered route.
type App struct {
	router     *router.Router
	middleware []httpproto.Middleware
}

// New returns an empty App.
func New() *App {
	return &App{router: router.New()}
}

// Use appends mw to the global middleware stack. Order of Use calls is
// outermost-first, matching httpproto.Chain's semantics.
func (a *App) Use(mw httpproto.Middleware) {
	a.middleware = append(a.middleware, mw)
}

func (a *App) register(method, pattern string, h httpproto.Handler) {
	a.router.Handle(method, pattern, httpproto.Chain(h, a.middleware...))
}

func (a *App) Get(pattern string, h httpproto.Handler)    { a.register("GET", pattern, h) }
func (a *App) Post(pattern string, h httpproto.Handler)   { a.register("POST", pattern, h) }
func (a *App) Put(pattern string, h httpproto.Handler)    { a.register("PUT", pattern, h) }
func (a *App) Patch(pattern string, h httpproto.Handler)  { a.register("PATCH", pattern, h) }
func (a *App) Delete(pattern string, h httpproto.Handler) { a.register("DELETE", pattern, h) }

// Router exposes the underlying router, e.g. for the dispatcher to call
// Dispatch directly per request.
func (a *App) Router() *router.Router { return a.router }

// Group returns a Group bound to prefix, inheriting a's current
// middleware stack as its own starting point; middleware added to the
// Group afterward does not affect a or sibling groups.
func (a *App) Group(prefix string) *Group {
	stack := make([]httpproto.Middleware, len(a.middleware))
	copy(stack, a.middleware)
	return &Group{app: a, prefix: prefix, middleware: stack}
}

// Group mounts a set of routes under a shared path prefix with its own
// middleware stack; the inherited global middleware stays outermost and
// the group's own middleware runs inside it (spec.md's route-group
// mounting, grounded on app.h's RouteBuilder groups).
type Group struct {
	app        *App
	prefix     string
	middleware []httpproto.Middleware
}

func (g *Group) Use(mw httpproto.Middleware) {
	g.middleware = append(g.middleware, mw)
}

func (g *Group) register(method, pattern string, h httpproto.Handler) {
	full := g.prefix + pattern
	g.app.router.Handle(method, full, httpproto.Chain(h, g.middleware...))
}

func (g *Group) Get(pattern string, h httpproto.Handler)    { g.register("GET", pattern, h) }
func (g *Group) Post(pattern string, h httpproto.Handler)   { g.register("POST", pattern, h) }
func (g *Group) Put(pattern string, h httpproto.Handler)    { g.register("PUT", pattern, h) }
func (g *Group) Patch(pattern string, h httpproto.Handler)  { g.register("PATCH", pattern, h) }
func (g *Group) Delete(pattern string, h httpproto.Handler) { g.register("DELETE", pattern, h) }

// Recover is a built-in Middleware that turns a handler panic into a 500
// response instead of crashing the connection's goroutine, grounded on
// the same defensive posture as http1.Connection.handleRequest's
// handler-error-to-500 mapping.
func Recover() httpproto.Middleware {
	return func(next httpproto.Handler) httpproto.Handler {
		return func(req *httpproto.Request) (resp *httpproto.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("app: handler panic recovered: %v", r)
					resp = httpproto.NewResponse().WithStatus(500, "Internal Server Error").
						WithJSONError(fmt.Sprintf("%v", r))
					err = nil
				}
			}()
			return next(req)
		}
	}
}

// Logger is a built-in Middleware that logs method, path, and outcome
// status code for every request, in the teacher's log.Printf idiom.
func Logger() httpproto.Middleware {
	return func(next httpproto.Handler) httpproto.Handler {
		return func(req *httpproto.Request) (*httpproto.Response, error) {
			resp, err := next(req)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			log.Printf("app: %s %s -> %d (err=%v)", req.Method, req.Path, status, err)
			return resp, err
		}
	}
}
