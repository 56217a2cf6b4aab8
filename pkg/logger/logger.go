package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// ErrInvalidLevel is returned alongside a usable logger when the level string is unknown.
var ErrInvalidLevel = errors.New("unknown log level")

type Options struct {
	AddSource bool
	Level     string
	// Console receives human readable lines. Defaults to os.Stderr.
	Console io.Writer
	// File, when set, receives JSON lines in append mode.
	File string
}

// New builds a logger writing text to the console and, optionally, JSON to a file.
// The returned closer releases the log file and must be called once the run ends.
// An unknown level yields a working info-level logger together with ErrInvalidLevel.
func New(opt *Options) (*slog.Logger, io.Closer, error) {
	if opt == nil {
		return nil, nil, fmt.Errorf("logger options are required")
	}

	level, levelErr := ParseLevel(opt.Level)

	opts := &slog.HandlerOptions{
		AddSource: opt.AddSource,
		Level:     level,
	}

	console := opt.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := fanout{slog.NewTextHandler(console, opts)}

	var closer io.Closer = nopCloser{}

	if opt.File != "" {
		if err := os.MkdirAll(filepath.Dir(opt.File), dirPerm); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}

		file, err := os.OpenFile(opt.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}

		handlers = append(handlers, slog.NewJSONHandler(file, opts))
		closer = file
	}

	return slog.New(handlers), closer, levelErr
}

// ParseLevel converts a string level to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}
}

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error

	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}

	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}

	return next
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
