// Package api exposes the assistant over HTTP. Transport concerns only;
// all decision logic lives behind the QueryHandler contract.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/astralhq/astral-assist/internal/router"
)

// QueryHandler is the slice of the router the transport depends on.
type QueryHandler interface {
	Handle(ctx context.Context, req router.Request) (router.Envelope, error)
}

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Resetter wipes a namespace for the administrative reset endpoint.
type Resetter interface {
	DeleteNamespace(ctx context.Context, namespace string) error
}

// SessionResetter clears conversational memory alongside a namespace wipe.
type SessionResetter interface {
	Reset()
}

// Config holds transport settings.
type Config struct {
	Addr        string
	CORSOrigins []string
	RateRPS     float64
	RateBurst   int
	TrustProxy  bool
	Namespace   string
}

// Server wires routes, middleware, and graceful shutdown.
type Server struct {
	cfg      Config
	handler  QueryHandler
	pinger   Pinger
	resetter Resetter
	sessions SessionResetter
	logger   *slog.Logger
	http     *http.Server
}

// New creates the server. pinger, resetter, and sessions may be nil; the
// matching endpoints then degrade gracefully.
func New(cfg Config, handler QueryHandler, pinger Pinger, resetter Resetter, sessions SessionResetter, logger *slog.Logger) *Server {
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 60
	}

	s := &Server{
		cfg:      cfg,
		handler:  handler,
		pinger:   pinger,
		resetter: resetter,
		sessions: sessions,
		logger:   logger.With("component", "api"),
	}

	limiter := newRateLimiter(cfg.RateRPS, cfg.RateBurst, cfg.TrustProxy, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/hello", s.handleHello)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("POST /api/admin/reset", s.handleReset)

	s.http = &http.Server{
		Addr: cfg.Addr,
		Handler: chain(mux,
			recovery(s.logger),
			requestID,
			logging(s.logger),
			cors(cfg.CORSOrigins),
			limiter.middleware,
		),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
