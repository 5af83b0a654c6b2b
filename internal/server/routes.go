package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the relay endpoints.
func (s *Server) RegisterRoutes() {
	s.E.GET("/healthz", s.health)
	s.E.GET("/ws", s.ServeWS, connectLimiter())
}

func (s *Server) health(c echo.Context) error {
	n, err := s.Clients(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "clients": n})
}
