package main

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"ace-league/internal/config"
	"ace-league/internal/constants"
	appfx "ace-league/internal/fx"
	"ace-league/internal/middleware"
	"ace-league/internal/server"
	"ace-league/internal/service"
)

func main() {
	app := fx.New(
		appfx.CoreModule,
		appfx.LeagueModule,
		fx.Invoke(runServer),
	)
	app.Run()
}

func runServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger zerolog.Logger,
	svc *service.LeagueService,
	srv *server.LeagueServer,
	db *sql.DB,
) {
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", middleware.AdminHeader},
	}).Handler(srv.Router())

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler,
		ReadTimeout:  constants.RequestTimeout,
		WriteTimeout: constants.RequestTimeout,
	}

	var watchCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.Refresh(ctx); err != nil {
				return err
			}

			watchCtx, cancel := context.WithCancel(context.Background())
			watchCancel = cancel
			go svc.Watch(watchCtx)

			go func() {
				logger.Info().
					Str("port", cfg.ServerPort).
					Str("cluster", cfg.Cluster).
					Msg("league server listening")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server stopped unexpectedly")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if watchCancel != nil {
				watchCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("graceful shutdown failed")
			}
			return db.Close()
		},
	})
}
