// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// New builds a slog.Logger: a colorized console handler (grounded on
// cmd/zeitwork's tint usage) for "console" format, plain JSON for "json".
func New(format string, w io.Writer) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, nil)
	} else {
		handler = tint.NewHandler(w, &tint.Options{})
	}
	return slog.New(handler).With(slog.String("service", "wal2http"))
}
