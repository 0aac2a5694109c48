// Package logging builds the process logger: JSON records into a rotating
// file plus human-readable records on stderr.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string // debug, info, warn, error
	Dir        string // empty disables the file sink
	MaxSizeMB  int
	MaxBackups int
	Stderr     bool
}

// Logger owns the rotating file so it can be closed on shutdown.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

func New(cfg Config) *Logger {
	lvl := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: lvl}

	var handlers []slog.Handler
	var file *lumberjack.Logger
	if cfg.Dir != "" {
		file = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "airline.slog"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		if file.MaxSize <= 0 {
			file.MaxSize = 32 // MB
		}
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}
	if cfg.Stderr || len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
	}

	var h slog.Handler = fanout(handlers)
	if len(handlers) == 1 {
		h = handlers[0]
	}
	return &Logger{Logger: slog.New(h), file: file}
}

// NewWriter logs JSON to w. Used by tests and tools.
func NewWriter(w io.Writer, level string) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))}
}

// Noop drops everything.
func Noop() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
