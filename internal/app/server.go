package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httpDelivery "github.com/oakley-grocery/backend/internal/delivery/http"
)

// Router builds the HTTP API over the application's resolver
func (a *App) Router() *gin.Engine {
	handler := httpDelivery.NewHandler(a.Resolver, a.Health, Version, a.Log)
	return httpDelivery.SetupRouter(a.Config, handler, a.Log)
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.Config.Server.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", srv.Addr).Str("environment", a.Config.Server.Environment).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.Log.Info().Msg("shutting down HTTP server")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	a.Log.Info().Msg("server stopped gracefully")
	return nil
}
