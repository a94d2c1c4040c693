package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/incident-console/backend/pkg/logger"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 15 * time.Second
)

// Server wraps the API's router in a lifecycle-managed net/http server, in
// the same listen-then-serve-then-shutdown shape as the Action Simulator
// Host.
type Server struct {
	addr   string
	server *http.Server
	log    *logger.Logger
}

// NewServer constructs a Server bound to addr, serving api's router.
func NewServer(addr string, api *API) *Server {
	return &Server{
		addr: addr,
		server: &http.Server{
			Handler:      api.Router(),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		log: logger.NewDefault("http-server"),
	}
}

// Name identifies this activity to the lifecycle manager.
func (s *Server) Name() string { return "http-server" }

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	s.log.WithField("addr", s.addr).Info("http server listening")
	return nil
}

// Stop gracefully shuts the server down, honoring ctx's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
