package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gfi-bot/internal/config"
	"gfi-bot/internal/queue"
	"gfi-bot/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// @title GFI Bot API
// @version 1.0
// @description Recommends good first issues for onboarded GitHub repositories.
// @host localhost:8080
// @BasePath /api/v1

type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	service *service.Service
	server  *http.Server
	queue   queue.Queue
}

func New(cfg *config.Config, log zerolog.Logger, svc *service.Service, q queue.Queue) (*App, error) {
	app := &App{
		cfg:     cfg,
		log:     log,
		service: svc,
		queue:   q,
	}

	router := mux.NewRouter()
	app.initializeRouter(router)

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("Failed to shutdown server gracefully")
		}
	}()

	a.log.Info().Msgf("Starting server on port %d", a.cfg.Server.Port)
	if err := a.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *App) Close() error {
	return a.service.Close()
}
