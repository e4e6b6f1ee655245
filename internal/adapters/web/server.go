// Package web serves the read-only HTTP and WebSocket views of the engine.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/wbs/internal/core/domain"
	"github.com/lcalzada-xor/wbs/internal/core/ports"
	"github.com/lcalzada-xor/wbs/internal/core/services/export"
	"github.com/lcalzada-xor/wbs/internal/timeutil"
)

// AutoConnectView is the read side of the auto-connect controller.
type AutoConnectView interface {
	State() domain.ControllerState
	Connected() string
	Attempts() []domain.ConnectionAttempt
	Backoffs() []domain.BackoffEntry
}

// RecordSource builds snapshot records on demand.
type RecordSource interface {
	Record(kind domain.SnapshotKind) (domain.SnapshotRecord, error)
}

// Format is a downloadable snapshot encoding.
type Format struct {
	ContentType string
	Encode      func(w io.Writer, rec domain.SnapshotRecord) error
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	Addr string

	engine     ports.EngineReader
	records    RecordSource
	controller AutoConnectView
	formats    map[string]Format
	tokenHash  string
	auth       *TokenAuth
	ws         *WSManager
	clock      timeutil.Clock
	logger     *slog.Logger
	srv        *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithController exposes auto-connect state under /api/autoconnect.
func WithController(c AutoConnectView) Option {
	return func(s *Server) { s.controller = c }
}

// WithTokenHash requires "Authorization: Bearer <token>" on every route but
// /health. hash is a bcrypt hash of the token.
func WithTokenHash(hash string) Option {
	return func(s *Server) { s.tokenHash = hash }
}

// WithFormat registers an export format.
func WithFormat(name string, f Format) Option {
	return func(s *Server) { s.formats[name] = f }
}

// WithClock sets the clock for the push loop and auth throttling.
func WithClock(c timeutil.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a web server over engine.
func NewServer(addr string, engine ports.EngineReader, records RecordSource, opts ...Option) *Server {
	s := &Server{
		Addr:    addr,
		engine:  engine,
		records: records,
		formats: map[string]Format{
			"json": {ContentType: "application/json", Encode: export.WriteJSON},
			"csv":  {ContentType: "text/csv", Encode: export.WriteCSV},
		},
		clock:  timeutil.RealClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tokenHash != "" {
		s.auth = NewTokenAuth([]byte(s.tokenHash), s.clock, s.logger)
	}
	s.ws = NewWSManager(engine, s.clock, s.logger)
	return s
}

// WS returns the WebSocket manager.
func (s *Server) WS() *WSManager { return s.ws }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.ws.Run(ctx, DefaultPushInterval)

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           otelhttp.NewHandler(s.Handler(), "wbs-http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Web server shutdown error", "error", err)
		}
	}()

	s.logger.Info("Web server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
