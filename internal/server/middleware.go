package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type contextKey string

const loggerKey = contextKey("logger")

// connectsPerSecond bounds websocket upgrades per client IP.
const connectsPerSecond = 10

// requestLogger injects a request-scoped logger into the request context,
// tagged with the ID assigned by the RequestID middleware. It must run after
// RequestID.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		logger := s.logger.With("request_id", reqID)

		ctx := context.WithValue(c.Request().Context(), loggerKey, logger)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// loggerFrom returns the request-scoped logger, or fallback if none was set.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

// connectLimiter throttles websocket upgrades per client IP.
func connectLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStore(connectsPerSecond),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.String(http.StatusTooManyRequests, "Too many connection attempts. Please try again later.")
		},
	})
}
