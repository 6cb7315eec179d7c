// Package logging builds the application logger: slog text records written
// to stdout and to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures New.
type Config struct {
	Path       string // log file; a path without extension is a directory
	Level      string // debug, info, warn or error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Stdout     io.Writer // console sink; defaults to os.Stdout
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New returns a logger writing to cfg.Stdout and a rotating file, plus a
// closer for the file. The standard library logger is redirected to the
// same sinks.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	logPath := strings.TrimSpace(cfg.Path)
	if logPath == "" {
		logPath = "logs/born-trainer.log"
	}
	if filepath.Ext(logPath) == "" {
		logPath = filepath.Join(logPath, "born-trainer.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	mw := io.MultiWriter(stdout, rotator)

	logger := slog.New(slog.NewTextHandler(mw, &slog.HandlerOptions{Level: level}))
	log.SetOutput(mw)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	return logger, rotator, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
