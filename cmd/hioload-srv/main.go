// File: cmd/hioload-srv/main.go
// Example binary wiring the server package into a runnable process, in
// the teacher's examples/*/main.go idiom: stdlib flag parsing, construct,
// run, handle SIGINT for graceful shutdown (spec.md §6: "An example
// binary chooses a port and starts the reactor. No required flags beyond
// what the example layer defines.").
// Author: momentics <momentics@gmail.com>
// License: MIT

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/momentics/hioload-srv/app"
	"github.com/momentics/hioload-srv/httpproto"
	"github.com/momentics/hioload-srv/server"
	"github.com/momentics/hioload-srv/websocket"
	"github.com/momentics/hioload-srv/workerpool"
)

func main() {
	cleartextAddr := flag.String("addr", ":8080", "cleartext HTTP/1.1 listen address")
	tlsAddr := flag.String("tls-addr", "", "TLS listen address (HTTP/1.1 and HTTP/2 via ALPN); empty disables TLS")
	certFile := flag.String("cert", "", "TLS certificate file")
	keyFile := flag.String("key", "", "TLS key file")
	threads := flag.Int("threads", 1, "number of reactor threads")
	flag.Parse()

	cfg := server.DefaultConfig()
	cfg.CleartextAddr = *cleartextAddr
	cfg.TLSAddr = *tlsAddr
	cfg.HTTP3Addr = *tlsAddr
	cfg.CertFile = *certFile
	cfg.KeyFile = *keyFile
	cfg.ReactorThreads = *threads

	a := app.New()
	a.Use(app.Recover())
	a.Use(app.Logger())

	a.Get("/healthz", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse().WithBody([]byte("ok")), nil
	})
	a.Get("/echo/{message}", func(req *httpproto.Request) (*httpproto.Response, error) {
		return httpproto.NewResponse().WithBody([]byte(req.Params["message"])), nil
	})

	pool, stopWorker := newLoopbackPool()
	defer stopWorker()
	a.Get("/worker/echo/{message}", pool.Handler("demo", "echo"))

	wsHandler := func(conn *websocket.Connection, msg *websocket.Message) {
		if conn == nil {
			return
		}
		conn.Send(msg.Opcode, msg.Payload)
	}

	srv := server.New(cfg, a, pool, wsHandler)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	fmt.Printf("hioload-srv listening cleartext=%s tls=%s threads=%d\n", cfg.CleartextAddr, cfg.TLSAddr, cfg.ReactorThreads)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("hioload-srv: %v", err)
	}
	fmt.Println("hioload-srv: shut down")
}

// newLoopbackPool wires a single-worker workerpool.Pool to a goroutine
// playing the worker's role over an in-process ShmRingTransport pair, so
// this example binary exercises the worker-pool call path (spec.md §2's
// "handler dispatch -> worker-pool transport -> ... -> response
// serialized" flow) end to end without requiring a separate worker
// process. A real deployment hands the dispatcher-side transport to a
// process/thread the example layer does not own; this stand-in plays
// both roles in one binary the way the teacher's examples keep a
// runnable demo self-contained.
func newLoopbackPool() (*workerpool.Pool, func()) {
	dispatcherSide, workerSide := workerpool.NewShmRingPair(64)
	pool := workerpool.NewPool([]workerpool.Transport{dispatcherSide})

	done := make(chan struct{})
	go runLoopbackWorker(workerSide, done)

	stop := func() {
		pool.Shutdown()
		workerSide.Close()
		<-done
	}
	return pool, stop
}

// runLoopbackWorker answers every request with a JSON body echoing the
// call's module/function/args, just enough to prove a round trip through
// the IPC wire format without pretending to be a real worker runtime.
func runLoopbackWorker(t workerpool.Transport, done chan<- struct{}) {
	defer close(done)
	for {
		req, err := workerpool.ReadRequest(t)
		if err != nil {
			return
		}
		body, err := json.Marshal(map[string]any{"module": req.Module, "function": req.Function, "args": req.Args})
		if err != nil {
			return
		}
		resp := &workerpool.Response{ID: req.ID, StatusCode: 200, Success: true, Body: body}
		if _, err := t.Write(workerpool.EncodeResponse(resp)); err != nil {
			return
		}
	}
}
