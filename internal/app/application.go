// Package app wires the classroom server together: store, snapshot,
// connection registry, router, hub and the HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"liveclass/internal/api"
	"liveclass/internal/config"
	"liveclass/internal/hub"
	"liveclass/internal/router"
	"liveclass/internal/snapshot"
	"liveclass/internal/store"
	"liveclass/internal/ws"
)

type Application struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *store.Store
	snap   *snapshot.Store
	hub    *hub.Hub
	server *http.Server
}

func New(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	st := store.New()

	var snap *snapshot.Store
	if cfg.Snapshot.Enabled {
		var err error
		snap, err = snapshot.Open(cfg.Snapshot.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}

		data, err := snap.Load(context.Background())
		if err != nil {
			_ = snap.Close()
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		st.Import(data)
	}

	// A brand-new deployment starts from the demo fixtures so the first
	// teacher has something to point a browser at.
	if st.Empty() {
		st.Seed()
		log.Info().Msg("store seeded with demo class")
	}

	rooms := ws.NewRegistry(log)
	rt := router.New(st, rooms, log)
	h := hub.New(rt, log)
	wsHandler := ws.NewHandler(h, log, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	apiServer := api.NewServer(st, rooms, wsHandler.HandleWebSocket, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      apiServer.Routes(cfg.CORS),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		store:  st,
		snap:   snap,
		hub:    h,
		server: httpServer,
	}, nil
}

// Run starts the hub and serves HTTP until the server is shut down.
func (a *Application) Run(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}

	a.log.Info().Str("address", a.cfg.Server.Address).Msg("server listening")
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server, stops the hub and saves the final
// snapshot. Connection goroutines die with their sockets.
func (a *Application) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.hub.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("hub stop: %w", err)
	}

	if a.snap != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.snap.Save(saveCtx, a.store.Export()); err != nil {
			a.log.Error().Err(err).Msg("final snapshot save failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := a.snap.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
