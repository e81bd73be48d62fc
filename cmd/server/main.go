package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmuslimabdulj/goat-dm/internal/app"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/logging"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("error", false)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.TrustUserIDParam {
		logger.Warn().Msg("TRUST_USER_ID_PARAM is enabled; websocket identities are not verified")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to initialise")
	}
	a.Start()

	server := newHTTPServer(cfg, a.Router)

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreDriver).
			Msg("goat-dm listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel = context.WithTimeout(context.Background(), domain.ShutdownGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := a.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("cleanup failed")
	}

	logger.Info().Msg("server exited gracefully")
}

// newHTTPServer creates the server with timeouts
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
