// Package logging configures the global zerolog logger and provides the HTTP
// access log middleware.
package logging

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global level and output. format is "console" or "json".
func Setup(level, format string, out *os.File) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return fmt.Errorf("unknown log level %q", level)
	}
	zerolog.SetGlobalLevel(lvl)

	var w io.Writer
	switch format {
	case "console", "":
		w = ConsoleWriter(out)
	case "json":
		w = out
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", format)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// ConsoleWriter returns a human-readable writer for f, coloured only when f
// is a terminal.
func ConsoleWriter(f *os.File) io.Writer {
	noColor := !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())

	w := zerolog.ConsoleWriter{Out: f, NoColor: noColor, TimeFormat: time.DateTime}
	w.FormatPrepare = func(m map[string]any) error {
		// access log lines read like "201 POST /v2/schema/lineages/images/records"
		if sys, ok := m["sys"]; ok && sys == "http" {
			m["message"] = fmt.Sprintf("%v %-5v %v", m["status"], m["method"], m["path"])
			delete(m, "sys")
			delete(m, "method")
			delete(m, "status")
			delete(m, "path")
		}
		return nil
	}
	return w
}

// Middleware logs one line per request with the chi request id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := log.Info()
			if status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("sys", "http").
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("dur", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote", r.RemoteAddr).
				Send()
		}()
		next.ServeHTTP(ww, r)
	})
}
