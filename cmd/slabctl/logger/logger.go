// Package logger configures the slog logger slabctl hands to the stores it
// opens.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// L is the logger passed to opened stores. It discards all output until Init
// enables logging.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Path  string // Log file; "-" means stderr, "" disables logging
	Level string // debug, info, warn or error. Default: info
}

// Init configures L. The returned close function releases the log file.
func Init(opts Options) (func() error, error) {
	nop := func() error { return nil }
	if opts.Path == "" {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nop, nil
	}

	level, err := parseLevel(opts.Level)
	if err != nil {
		return nop, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.Path == "-" {
		L = slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
		return nop, nil
	}

	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nop, err
	}
	L = slog.New(slog.NewJSONHandler(f, handlerOpts))
	return f.Close, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
