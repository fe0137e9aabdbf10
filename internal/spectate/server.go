package spectate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/netpong/internal/util"
)

// NewRouter mounts the spectator feed at /ws, the registry at /metrics and
// a liveness probe at /healthz. reg may be nil.
func NewRouter(hub *Hub, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Get("/ws", hub.ServeHTTP)
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	return r
}

// Server is the HTTP side of a match.
type Server struct {
	listener net.Listener
	srv      *http.Server
}

// Start listens on addr and serves h in the background.
func Start(addr string, h http.Handler) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start spectator server: %w", err)
	}

	s := &Server{
		listener: listener,
		srv:      &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
	}
	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("spectator server stopped: %v", err)
		}
	}()

	util.LogInfo("spectators: ws://%s/ws, metrics: http://%s/metrics", listener.Addr(), listener.Addr())
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Close stops accepting requests and waits for handlers until ctx is done.
// Upgraded WebSocket connections are not tracked by the server; close the
// Hub first.
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
