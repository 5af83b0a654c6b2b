package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Start serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", "addr", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Relay shutting down")
	return s.E.Shutdown(shutdownCtx)
}
