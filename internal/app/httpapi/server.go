package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/skymaintain/service-layer/internal/app/system"
	"github.com/skymaintain/service-layer/pkg/logger"
)

// Server runs the API over HTTP as a lifecycle-managed service.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

var _ system.Service = (*Server)(nil)

// NewServer builds the HTTP server around the given handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration, log *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		log: log,
	}
}

func (s *Server) Name() string { return "httpapi" }

// Start begins serving in the background. Listener failures after startup are
// logged; the caller observes them through health checks.
func (s *Server) Start(_ context.Context) error {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server terminated")
		}
	}()
	return nil
}

// Stop drains in-flight requests until the context expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
