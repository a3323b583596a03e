// Package logging builds the run's slog sinks: a rotating file always, plus
// colorized stderr unless the TUI owns the terminal. Credential-bearing
// attributes are redacted in the handler layer, so no call site can leak a
// raw cookie value into a log file by forgetting to mask it.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"

	"hostkeeper/internal/mask"
)

type Options struct {
	File  string
	Level string
	// TUI suppresses the stderr sink; bubbletea owns the terminal.
	TUI bool
}

// Setup returns the configured logger and a closer for the file sink.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	lvl := parseLevel(opts.Level)

	if dir := filepath.Dir(opts.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
	}

	fileHandler := tint.NewHandler(file, &tint.Options{
		Level:       lvl,
		TimeFormat:  time.RFC3339,
		NoColor:     true,
		ReplaceAttr: redactSecrets,
	})

	if opts.TUI {
		return slog.New(fileHandler), file.Close, nil
	}

	noColor := !isatty.IsTerminal(os.Stderr.Fd()) || os.Getenv("NO_COLOR") != ""
	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:       lvl,
		TimeFormat:  time.TimeOnly,
		NoColor:     noColor,
		ReplaceAttr: redactSecrets,
	})

	return slog.New(tee{fileHandler, stderrHandler}), file.Close, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactSecrets masks attribute values that carry credentials or panel
// resource URLs. Cookie and account names stay readable; only values are
// secrets.
func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "value", "secret", "token":
		a.Value = slog.StringValue(mask.Sensitive(a.Value.String()))
	case "url":
		a.Value = slog.StringValue(mask.URL(a.Value.String()))
	}
	return a
}

// tee fans every record out to all sinks.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range t {
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
