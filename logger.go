package kvdb

import (
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs a text logger on stderr as the slog default.
// The level is read from KVDB_LOG_LEVEL and defaults to INFO.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)

	switch strings.ToUpper(os.Getenv("KVDB_LOG_LEVEL")) {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
