package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/parley-chat/parley/internal/server"
	"github.com/parley-chat/parley/internal/store"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "parley").Logger()

	cfg, err := server.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("loading configuration")
	}

	credentials, err := store.OpenBadger(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening credential store")
	}
	defer func() {
		if err := credentials.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing credential store")
		}
	}()

	hub := server.NewHub(cfg, credentials, logger)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Addr, server.SetupRoutes(hub))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer, cfg, logger)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped")
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Warn().Err(err).Msg("hub shutdown incomplete")
	}
}
