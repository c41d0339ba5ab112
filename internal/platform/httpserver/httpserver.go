// Package httpserver builds the process's http.Server from configuration.
package httpserver

import (
	"net/http"
	"time"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 2 * time.Minute
)

// Options bound per-connection behavior. Read/write body timeouts are
// deliberately absent: the relay's websocket connections are served by the
// same listener and manage their own deadlines after the upgrade.
type Options struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
}

// New builds the HTTP server, filling in defaults for unset timeouts.
func New(opts Options, handler http.Handler) *http.Server {
	readHeader := opts.ReadHeaderTimeout
	if readHeader <= 0 {
		readHeader = defaultReadHeaderTimeout
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}
	return &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeader,
		IdleTimeout:       idle,
	}
}
