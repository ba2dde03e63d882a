package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// EnvLogLevel sets the default per-request log level.
const EnvLogLevel = "MODELGATE_HTTP_LOG"

// parseLevel maps a request log level name to zerolog. "off" disables request
// logging, "1" is shorthand for debug, unknown names fall back to info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	case "":
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// requestLevel honors ?log= then X-Log-Level, else def.
func requestLevel(r *http.Request, def zerolog.Level) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return def
}

func defaultLevel(configured string) zerolog.Level {
	if configured != "" {
		return parseLevel(configured)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		return parseLevel(v)
	}
	return zerolog.InfoLevel
}

// requestLogger returns base tagged with the request id and filtered to the
// request's level.
func requestLogger(r *http.Request, base zerolog.Logger, def zerolog.Level) zerolog.Logger {
	ctx := base.With().Str("path", r.URL.Path)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ctx = ctx.Str("request_id", rid)
	}
	return ctx.Logger().Level(requestLevel(r, def))
}

// lineLogger logs each complete NDJSON line written through it at debug.
type lineLogger struct {
	log zerolog.Logger
	buf []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			return len(p), nil
		}
		if i > 0 {
			l.log.Debug().Bytes("line", l.buf[:i]).Msg("infer>")
		}
		l.buf = l.buf[i+1:]
	}
}
