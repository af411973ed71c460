// Package server exposes a session over HTTP: a single page, a small JSON API
// for submit/approve/deny and a websocket event stream.
package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/viant/unchained/internal/logging"
	"github.com/viant/unchained/service/conversation"
	"github.com/viant/unchained/service/event"
	"github.com/viant/unchained/service/session"
)

// CookieName carries the session id.
const CookieName = "unchained_session"

//go:embed static/index.html
var indexHTML []byte

type Server struct {
	registry  *session.Registry
	driver    *conversation.Driver
	hub       *Hub
	listener  *event.Listener[any]
	publisher *event.Publisher[any]
	logger    *zap.Logger
	router    chi.Router
	bodyLimit int64
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPublisher streams events drained from publisher to websocket clients.
func WithPublisher(publisher *event.Publisher[any]) Option {
	return func(s *Server) { s.publisher = publisher }
}

func New(registry *session.Registry, driver *conversation.Driver, options ...Option) *Server {
	ret := &Server{registry: registry, driver: driver, bodyLimit: 1 << 20}
	for _, option := range options {
		option(ret)
	}
	ret.logger = logging.OrNop(ret.logger)
	ret.hub = NewHub(ret.logger)
	if ret.publisher != nil {
		ret.listener = event.NewListener[any](ret.publisher, func(e *event.Event[any]) {
			ret.hub.Publish(context.Background(), e)
		}, ret.logger)
	}
	ret.router = ret.routes()
	return ret
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", s.handleSnapshot)
		r.Post("/tasks", s.handleSubmit)
		r.Post("/approve", s.handleApprove)
		r.Post("/deny", s.handleDeny)
		r.Post("/reset", s.handleReset)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

// Start begins forwarding events to websocket clients.
func (s *Server) Start(ctx context.Context) {
	if s.listener != nil {
		s.listener.Start(ctx)
	}
}

// Stop halts event forwarding and disconnects clients.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.hub.Close()
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Start(ctx)
	defer s.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
