package httpserver

import (
	"net/http"

	"nftform/internal/platform/config"
)

// New builds an HTTP server with the timeouts from cfg.
func New(addr string, handler http.Handler, cfg config.Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}
