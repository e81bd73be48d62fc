// Package app wires the server components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-dm/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-dm/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-dm/internal/presence"
	"github.com/mmuslimabdulj/goat-dm/internal/store"
	"github.com/mmuslimabdulj/goat-dm/internal/usecase"
)

// App is a fully wired server.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.DataStore
	Hub       *ws.Hub
	Registry  *presence.Registry
	Messenger *usecase.Messenger
	Verifier  *auth.Verifier
	Router    http.Handler

	handler *httpHandler.Handler
}

// New opens the configured store and builds every component. Call Start to
// run the hub and Close to release resources.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hub := ws.NewHub(logger.With().Str("component", "hub").Logger())
	hub.SetLimits(cfg.SendBufferSize, int64(cfg.MaxMessageSize))

	// The hub fans presence changes out to every live connection
	registry := presence.NewRegistry(hub)
	hub.SetRegistry(registry)

	messenger := usecase.NewMessenger(ds, ds, registry,
		logger.With().Str("component", "messenger").Logger(),
		usecase.WithMaxTextLength(cfg.MaxTextLength))
	hub.SetRelay(messenger)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	authMW := auth.NewMiddleware(verifier, ds, logger)

	handler := httpHandler.NewHandler(cfg, messenger, hub, registry, authMW, ds, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     ds,
		Hub:       hub,
		Registry:  registry,
		Messenger: messenger,
		Verifier:  verifier,
		Router:    httpHandler.NewRouter(handler),
		handler:   handler,
	}, nil
}

// Start runs the hub loop.
func (a *App) Start() {
	go a.Hub.Run()
}

// Close shuts the hub down and closes the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub: %w", err))
	}
	a.handler.Close()
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
