// File: server/server.go
// Server wires one or more reactor-owning goroutines, the protocol
// dispatcher, the app-layer handler facade, and (optionally) a worker
// pool into the single runnable process spec.md §2's data-flow diagram
// describes end to end: accept -> dispatcher -> TLS (optional) -> HTTP
// state machine -> router match -> handler (in-process or worker-pool
// dispatch) -> response.
//
// Grounded on the teacher's cmd/hioload-ws-server wiring style (build a
// reactor, register listeners, Run until signaled) generalized from a
// single WebSocket listener to the three-listener (cleartext, TLS,
// QUIC) surface this module adds, with one reactor+dispatcher pair per
// configured ReactorThreads count replicated via SO_REUSEPORT exactly as
// spec.md §4.5 describes.
// Author: momentics <momentics@gmail.com>
// License: MIT

package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"sync"

	"github.com/momentics/hioload-srv/app"
	"github.com/momentics/hioload-srv/coro"
	"github.com/momentics/hioload-srv/dispatch"
	"github.com/momentics/hioload-srv/httpproto/http3"
	"github.com/momentics/hioload-srv/reactor"
	"github.com/momentics/hioload-srv/websocket"
	"github.com/momentics/hioload-srv/workerpool"
)

// reactorUnit is one reactor thread's complete stack: its own Reactor,
// Resumer, and Dispatcher, pinned together per spec.md §5's "one reactor
// per worker thread" model.
type reactorUnit struct {
	r          *reactor.Reactor
	resumer    *coro.Resumer
	dispatcher *dispatch.Dispatcher
}

// Server owns the full set of reactor units, the shared app facade, the
// optional worker pool, and the HTTP/3 listener (which runs its own
// quic-go-managed accept loop rather than a reactor unit, per
// httpproto/http3's design note).
type Server struct {
	cfg   *Config
	App   *app.App
	Pool  *workerpool.Pool
	units []*reactorUnit
	h3    *http3.Listener

	wsHandler websocket.MessageHandler
}

// New constructs a Server from cfg and the application's handler facade.
// pool may be nil if every route is handled in-process (app.App routes
// directly to handlers without crossing into worker-pool dispatch).
func New(cfg *Config, a *app.App, pool *workerpool.Pool, wsHandler websocket.MessageHandler) *Server {
	return &Server{cfg: cfg, App: a, Pool: pool, wsHandler: wsHandler}
}

// Run starts every configured listener and blocks until ctx is cancelled,
// then stops every reactor and releases listener resources.
func (s *Server) Run(ctx context.Context) error {
	n := s.cfg.ReactorThreads
	if n < 1 {
		n = 1
	}

	tlsConf, err := s.cfg.TLSConfig()
	if err != nil {
		return fmt.Errorf("server: tls config: %w", err)
	}

	for i := 0; i < n; i++ {
		u, err := s.newReactorUnit(i, n, tlsConf)
		if err != nil {
			s.stopUnits()
			return err
		}
		s.units = append(s.units, u)
	}

	if tlsConf != nil && s.cfg.HTTP3Addr != "" {
		h3Conf := tlsConf.Clone()
		h3Conf.NextProtos = []string{http3.ALPNProto}
		l, err := http3.Listen(s.cfg.HTTP3Addr, h3Conf, s.units[0].resumer, s.App.Router().Dispatch)
		if err != nil {
			s.stopUnits()
			return fmt.Errorf("server: http3 listen: %w", err)
		}
		s.h3 = l
		go func() {
			if err := l.Serve(ctx); err != nil {
				log.Printf("server: http3 serve exited: %v", err)
			}
		}()
	}

	var wg sync.WaitGroup
	for _, u := range s.units {
		wg.Add(1)
		go func(u *reactorUnit) {
			defer wg.Done()
			if err := u.r.Run(); err != nil {
				log.Printf("server: reactor exited: %v", err)
			}
		}(u)
	}

	<-ctx.Done()
	for _, u := range s.units {
		u.r.Stop()
	}
	wg.Wait()
	s.stopUnits()

	if s.Pool != nil {
		rejected := s.Pool.Shutdown()
		if rejected > 0 {
			log.Printf("server: shut down with %d pending worker calls rejected", rejected)
		}
	}
	return nil
}

func (s *Server) stopUnits() {
	for _, u := range s.units {
		u.r.Stop()
		if err := u.dispatcher.Close(); err != nil {
			log.Printf("server: dispatcher close: %v", err)
		}
		if err := u.r.Close(); err != nil {
			log.Printf("server: reactor close: %v", err)
		}
	}
}

func (s *Server) newReactorUnit(index, total int, tlsConf *tls.Config) (*reactorUnit, error) {
	r := reactor.Auto()
	if r == nil {
		return nil, fmt.Errorf("server: no reactor backend available on this platform")
	}
	resumer := coro.NewResumer(r)
	if index == 0 {
		coro.SetGlobal(resumer)
	}
	r.SetWakeCallback(func() { resumer.ProcessQueue() })

	d := dispatch.New(r, s.App, resumer, s.wsHandler)

	reusePort := total > 1
	if s.cfg.CleartextAddr != "" {
		if err := listenCleartext(d, s.cfg.CleartextAddr, reusePort); err != nil {
			return nil, fmt.Errorf("server: cleartext listen: %w", err)
		}
	}
	if tlsConf != nil && s.cfg.TLSAddr != "" {
		if err := listenTLS(d, s.cfg.TLSAddr, tlsConf, reusePort); err != nil {
			return nil, fmt.Errorf("server: tls listen: %w", err)
		}
	}

	return &reactorUnit{r: r, resumer: resumer, dispatcher: d}, nil
}

func listenCleartext(d *dispatch.Dispatcher, addr string, reusePort bool) error {
	if reusePort {
		return d.ListenCleartextReusePort(addr)
	}
	return d.ListenCleartext(addr)
}

func listenTLS(d *dispatch.Dispatcher, addr string, tlsConf *tls.Config, reusePort bool) error {
	if reusePort {
		return d.ListenTLSReusePort(addr, tlsConf)
	}
	return d.ListenTLS(addr, tlsConf)
}
