package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"
	httpmiddleware "github.com/wolfeidau/donations/internal/http"
)

func Setup(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// RequestLogger attaches a per-request child of logger to the request
// context and logs one line per request once the handler returns.
// Run it inside ClientIPMiddleware so the client address is available.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", httpmiddleware.ClientIPFromContext(r.Context())).
				Logger()

			r = r.WithContext(reqLogger.WithContext(r.Context()))

			m := httpsnoop.CaptureMetrics(next, w, r)

			event := zerolog.Ctx(r.Context()).Info()
			switch {
			case m.Code >= http.StatusInternalServerError:
				event = zerolog.Ctx(r.Context()).Error()
			case m.Code >= http.StatusBadRequest:
				event = zerolog.Ctx(r.Context()).Warn()
			}

			event.
				Int("status", m.Code).
				Int64("bytes", m.Written).
				Dur("duration", m.Duration).
				Msg("http request")
		})
	}
}
