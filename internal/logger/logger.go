package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sachinthra/blobserve/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a structured JSON logger that fans out to stdout and a
// rotating log file.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)

	writer, err := setupWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup log writer: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}

	handler := slog.NewJSONHandler(writer, opts)
	return slog.New(handler), nil
}

// setupWriter configures the log writer with rotation using lumberjack.
func setupWriter(cfg config.LoggingConfig) (io.Writer, error) {
	logDir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	lumberjackLogger := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
		LocalTime:  true,
	}

	return io.MultiWriter(os.Stdout, lumberjackLogger), nil
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
