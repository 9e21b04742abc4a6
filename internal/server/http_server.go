// Package server constructs and runs the HTTP service in front of the hub.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// CreateServer builds the HTTP server with production timeout defaults.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer listens and serves, with TLS when both cert and key paths are
// configured. It blocks until the server stops and returns nil on a clean
// shutdown.
func StartServer(srv *http.Server, cfg Config, log zerolog.Logger) error {
	var err error
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		log.Info().Str("addr", srv.Addr).Msg("listening with TLS")
		err = srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		err = srv.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// connections until the timeout.
func ShutdownServer(srv *http.Server, timeout time.Duration, log zerolog.Logger) error {
	log.Info().Msg("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
		return err
	}

	log.Info().Msg("HTTP server shutdown complete")
	return nil
}
