package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
)

// Server hosts the route tree.
type Server struct {
	log logging.Logger
	srv *http.Server
}

// NewServer wraps a handler in an http.Server with sane timeouts.
func NewServer(host string, port int, handler http.Handler, log logging.Logger) *Server {
	return &Server{
		log: log.Named("http"),
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", logging.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
