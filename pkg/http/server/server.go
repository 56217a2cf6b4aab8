// Package httpserver runs an http.Server in the background.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultAddr            = ":9090"
	defaultShutdownTimeout = 3 * time.Second
)

// Server is a background HTTP server.
type Server struct {
	server          *http.Server
	listener        net.Listener
	errCh           chan error
	shutdownTimeout time.Duration
}

// Options configures a Server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// New binds opt.Addr and starts serving handler in the background.
// Bind errors are returned right away; later serve errors arrive on Notify.
func New(handler http.Handler, opt Options) (*Server, error) {
	if opt.Addr == "" {
		opt.Addr = defaultAddr
	}

	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = defaultShutdownTimeout
	}

	ln, err := net.Listen("tcp", opt.Addr)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		server: &http.Server{
			Handler:      handler,
			Addr:         opt.Addr,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
		},
		listener:        ln,
		errCh:           make(chan error, 1),
		shutdownTimeout: opt.ShutdownTimeout,
	}

	go srv.start()

	return srv, nil
}

func (s *Server) start() {
	err := s.server.Serve(s.listener)
	if !errors.Is(err, http.ErrServerClosed) {
		s.errCh <- err
	}

	close(s.errCh)
}

// Addr returns the bound address, useful when Options.Addr used port 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Notify delivers the serve error, if any. It is closed once the server stops.
func (s *Server) Notify() <-chan error {
	return s.errCh
}

// Shutdown stops the server gracefully within the shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
