package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/stepchain/stepchain/config"
)

const (
	// LogLevelEnvVar is the environment variable name for log level
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for log format
	LogFormatEnvVar = "LOG_FORMAT"
	// LogFileEnvVar is the environment variable name for log file path
	LogFileEnvVar = "LOG_FILE"
)

// initLogger configures the process logger.
// Priority: CLI flags > env vars > config file > defaults.
// Returns the logger and a cleanup function for the log file.
func initLogger(cli *CLI, cfg *config.Config) (*slog.Logger, func(), error) {
	level := firstNonEmpty(cli.LogLevel, os.Getenv(LogLevelEnvVar), cfg.Global.Logging.Level, "info")
	format := firstNonEmpty(cli.LogFormat, os.Getenv(LogFormatEnvVar), cfg.Global.Logging.Format, "text")
	file := firstNonEmpty(cli.LogFile, os.Getenv(LogFileEnvVar))

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", level)
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = f
		cleanup = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("invalid log format: %s", format)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
