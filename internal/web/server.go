// Package web provides the HTTP status and command API for the controller.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/logger"
	"github.com/sweeney/ac-controller/internal/status"
	"github.com/sweeney/ac-controller/internal/store"
)

const (
	maxHeaderBytes    = 1 << 20
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// EventSource lists recent diagnostic events, newest first.
type EventSource interface {
	Recent(ctx context.Context, limit int) ([]store.JournalEntry, error)
}

// Server serves the status page and API over HTTP.
type Server struct {
	httpServer *http.Server
}

// New creates a Server. Commands are queued into in and applied by the
// control loop; events may be nil to serve the tracker's in-memory history.
func New(addr string, tracker *status.Tracker, in *inbox.Inbox, events EventSource, log *logger.Logger) *Server {
	h := NewHandler(tracker, in, events, log)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h.InitRoutes(),
			MaxHeaderBytes:    maxHeaderBytes,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
	}
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
