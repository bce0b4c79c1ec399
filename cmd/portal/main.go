package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dimichiko/kitportal/internal/authapi"
	"github.com/dimichiko/kitportal/internal/http/handlers"
	httpapi "github.com/dimichiko/kitportal/internal/http/httpapi"
	"github.com/dimichiko/kitportal/internal/infra"
	"github.com/dimichiko/kitportal/internal/session"
	"github.com/dimichiko/kitportal/internal/tokenstore"
)

func main() {
	// Muat .env (opsional)
	_ = godotenv.Load()

	// Konfigurasi & logger
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Persisted tokens from the previous run, if any
	tokens, err := tokenstore.Open(cfg.TokenFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.TokenFile).Msg("failed to open token store")
	}

	// Account API client & session store
	api := authapi.NewClient(authapi.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})
	sessions := session.New(api, tokens, logger)
	defer sessions.Dispose()

	// Bootstrap the saved session in the background; the guards serve
	// "loading" until this settles.
	go func() {
		if err := sessions.Init(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("session bootstrap did not settle cleanly")
		}
	}()

	// App container
	app := handlers.NewApp(logger, sessions, api, tokens)

	// Bangun router via package httpapi (sudah ada middleware chi di dalamnya)
	router := httpapi.NewRouter(app, sessions, logger, cfg)

	// HTTP server wrapper dari infra
	server := infra.NewHTTPServer(cfg, router)

	// Start async
	go func() {
		logger.Info().Msgf("portal listening on 127.0.0.1:%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("portal stopped")
}
