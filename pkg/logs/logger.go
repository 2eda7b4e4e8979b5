// Package logs builds the structured logger shared by the vencc
// command, REPL and server.
package logs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

var level = new(slog.LevelVar)

// Handler wraps the fanout handler so callers can tell a vencc logger
// apart from any other slog.Handler.
type Handler struct {
	slog.Handler
}

// Options selects where log records go.
type Options struct {
	// Text is the human readable sink, normally stderr. Nil disables it.
	Text io.Writer
	// JSON receives the same records as one JSON object per line.
	JSON io.Writer
}

// New returns a logger writing to every sink in opts. All loggers share
// one level, changed with SetLevel.
func New(opts Options) *slog.Logger {
	var handlers []slog.Handler
	if opts.Text != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Text, &slog.HandlerOptions{
			Level: level,
		}))
	}
	if opts.JSON != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.JSON, &slog.HandlerOptions{
			Level: level,
		}))
	}
	return slog.New(&Handler{
		Handler: slogmulti.Fanout(handlers...),
	})
}

// Open is New with stderr as the text sink and, when path is not empty,
// a JSON log appended to path. The returned close func is never nil.
func Open(path string) (*slog.Logger, func() error, error) {
	if path == "" {
		return New(Options{Text: os.Stderr}), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return New(Options{Text: os.Stderr, JSON: f}), f.Close, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// SetLevel changes the level of every logger built by New.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level reports the current shared level.
func Level() slog.Level {
	return level.Level()
}

// ParseLevel accepts debug, info, warn and error, case-insensitively.
// An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", name, err)
	}
	return l, nil
}

// Enabled reports whether logger would emit a record at l.
func Enabled(logger *slog.Logger, l slog.Level) bool {
	return logger.Enabled(context.Background(), l)
}
