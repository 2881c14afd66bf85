package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	aginghttp "github.com/odyssey-erp/odyssey-aging/internal/aging/http"
	"github.com/odyssey-erp/odyssey-aging/jobs"
	"github.com/odyssey-erp/odyssey-aging/report"
)

// NewServer builds the HTTP server serving the aging API from s.
func NewServer(s *Services) *http.Server {
	handler := aginghttp.NewHandler(s.Logger, s.Aging, s.Loader, s.PDF, s.Postgres)
	handler.WithMaxUpload(s.Config.MaxUploadBytes)

	checks := map[string]HealthCheck{}
	if s.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return s.Redis.Ping(ctx).Err() }
	}
	if s.Pool != nil {
		checks["postgres"] = s.Pool.Ping
	}
	if client, ok := s.PDF.(*report.Client); ok {
		checks["gotenberg"] = client.Ping
	}

	var jobHandler *jobs.Handler
	if s.Inspector != nil {
		jobHandler = jobs.NewHandler(s.Inspector, s.Logger)
	}

	return &http.Server{
		Addr: s.Config.AppAddr,
		Handler: NewRouter(RouterParams{
			Logger:       s.Logger,
			Config:       s.Config,
			Metrics:      s.Metrics,
			AgingHandler: handler,
			JobHandler:   jobHandler,
			Checks:       checks,
		}),
		ReadTimeout:  s.Config.AppReadTimeout,
		WriteTimeout: s.Config.AppWriteTimeout,
	}
}

// Serve runs the HTTP server and the cache invalidation listener until ctx is
// cancelled, then shuts down gracefully.
func Serve(ctx context.Context, s *Services) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if err := s.Cache.ListenForInvalidation(ctx, ""); err != nil {
		s.Logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	server := NewServer(s)
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("starting http server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	s.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error("graceful shutdown", slog.Any("error", err))
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
