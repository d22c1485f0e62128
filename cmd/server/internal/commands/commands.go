package commands

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/donations/internal/logger"
)

type Globals struct {
	Debug   bool
	Version string
}

// setupLogging installs the process logger as the global and context
// default so stores and request handlers share it.
func setupLogging(globals *Globals) zerolog.Logger {
	l := logger.Setup(globals.Debug)
	log.Logger = l
	zerolog.DefaultContextLogger = &l
	return l
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
