// Package httpserver builds the API's *http.Server from configuration.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"notary/internal/platform/config"
)

const readHeaderTimeout = 5 * time.Second

// New returns a server for handler. Errors the net/http package would print
// to stderr go to logger at warn level.
func New(cfg config.Server, handler http.Handler, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
