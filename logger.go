package trafficlight

import (
	"context"
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)
var logger *slog.Logger

func init() {
	opts := slog.HandlerOptions{
		Level: logLevel,
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &opts))
	slog.SetDefault(logger)
}

// SetDebug switches the package logger to debug level.
func SetDebug(debug bool) {
	if debug {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
}

func newLoggerFromContext(ctx context.Context) *slog.Logger {
	l := logger
	if p, ok := ctx.Value(phaseKey).(Phase); ok {
		l = l.With("phase", p)
	}
	if n, ok := ctx.Value(crossingKey).(int); ok {
		l = l.With("crossing", n)
	}
	return l
}
