// File: server/config.go
// Package server wires the reactor, protocol dispatcher, app facade, and
// worker pool into one runnable process (spec.md §6 listening sockets +
// SPEC_FULL.md's "server/ Config, wiring, Server.Run" module).
//
// Config follows the teacher's control.ConfigStore (control/config.go)
// shape — a mutex-guarded snapshot with hot-reload listener callbacks —
// narrowed from a free-form map[string]any to the typed fields this
// server actually needs, and wired to fsnotify so editing the config
// file on disk triggers OnReload the same way ConfigStore.SetConfig does
// in-process.
// Author: momentics <momentics@gmail.com>
// License: MIT

package server

import (
	"crypto/tls"
	"encoding/json"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/momentics/hioload-srv/tlsadapter"
)

// Config is the typed server configuration snapshot: listening addresses,
// TLS material, and queue/pool sizing (spec.md §6 default ports 8080/443).
type Config struct {
	// CleartextAddr is the HTTP/1.1 cleartext listen address, e.g. ":8080".
	CleartextAddr string `json:"cleartext_addr"`
	// TLSAddr is the TLS (HTTP/1.1 or HTTP/2 via ALPN) listen address, e.g. ":443".
	TLSAddr string `json:"tls_addr"`
	// HTTP3Addr is the UDP/QUIC listen address for HTTP/3, e.g. ":443".
	HTTP3Addr string `json:"http3_addr"`

	// CertFile/KeyFile load a static certificate for TLS and HTTP/3. When
	// both are empty and AutocertHosts is non-empty, autocert supplies
	// the certificate instead (tlsadapter.NewAutocertConfig).
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	AutocertHosts   []string `json:"autocert_hosts"`
	AutocertCacheDir string  `json:"autocert_cache_dir"`

	// WorkerCount is loaded with the rest of the configuration; Server
	// does not read it. The worker pool is built by the caller
	// (workerpool.NewPool) and assigned to Server.Pool.
	WorkerCount int `json:"worker_count"`

	// ReactorThreads is the number of reactor-owning goroutines the
	// cleartext/TLS acceptors are replicated across via SO_REUSEPORT-style
	// per-thread acceptors (spec.md §4.2).
	ReactorThreads int `json:"reactor_threads"`
}

// DefaultConfig returns the spec's documented default ports with a single
// reactor thread and no workers (in-process handlers only).
func DefaultConfig() *Config {
	return &Config{
		CleartextAddr:  ":8080",
		TLSAddr:        ":443",
		HTTP3Addr:      ":443",
		ReactorThreads: 1,
	}
}

// LoadConfig reads and parses a JSON config file at path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TLSConfig builds the *tls.Config this configuration implies: a static
// certificate file pair if given, else autocert if hosts are configured,
// else nil (TLS/HTTP3 listeners are skipped).
func (c *Config) TLSConfig() (*tls.Config, error) {
	if c.CertFile != "" && c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, err
		}
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
			MinVersion:   tls.VersionTLS12,
		}, nil
	}
	if len(c.AutocertHosts) > 0 {
		return tlsadapter.NewAutocertConfig(c.AutocertCacheDir, c.AutocertHosts...), nil
	}
	return nil, nil
}

// Store holds the live Config and notifies listeners on reload, mirroring
// control.ConfigStore's GetSnapshot/SetConfig/OnReload contract narrowed
// to a single typed struct instead of a free-form map.
type Store struct {
	mu        sync.RWMutex
	cfg       *Config
	listeners []func(*Config)
	watcher   *fsnotify.Watcher
}

// NewStore wraps an initial Config.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns the current Config. Callers must not mutate the result.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the current Config and notifies every registered listener,
// each on its own goroutine, matching ConfigStore.dispatchReload.
func (s *Store) Set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	listeners := make([]func(*Config), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		go fn(cfg)
	}
}

// OnReload registers fn to run whenever Set is called or the watched file
// changes.
func (s *Store) OnReload(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// WatchFile watches path for writes via fsnotify and reloads the Config
// from it on every change, propagating to listeners. Returns a close
// function that stops watching.
func (s *Store) WatchFile(path string) (func() error, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					continue
				}
				s.Set(cfg)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return w.Close, nil
}
