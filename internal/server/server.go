// Package server is a small broadcast relay for local development and
// end-to-end tests: every chat message a client sends is played back to all
// connected clients, the sender included. It does no routing and no bot replies.
package server

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/chatline/internal/hub"
)

const defaultSendBuffer = 256

// Server holds the dependencies of the relay.
type Server struct {
	E          *echo.Echo
	hub        *hub.Hub
	validate   *validator.Validate
	sendBuffer int
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSendBuffer sets the per-client outbound queue size.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// New creates a relay with its routes registered. Run must be called to start
// the broadcast loop.
func New(opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s := &Server{
		E:          e,
		hub:        hub.NewHub(),
		validate:   validator.New(),
		sendBuffer: defaultSendBuffer,
		logger:     slog.Default().With("component", "relay"),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)

	s.RegisterRoutes()
	return s
}

// Run starts the broadcast loop. It returns when ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// Clients returns the number of connected clients.
func (s *Server) Clients(ctx context.Context) (int, error) {
	return s.hub.Count(ctx)
}
