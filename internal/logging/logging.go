// Package logging builds the process logger from config.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Params struct {
	Level      string
	File       string
	ToStdout   bool
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New returns a text logger and a closer for its output. Without a file the
// logger writes to stdout and the closer is a no-op.
func New(p Params) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(p.Level)}

	if p.File == "" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nopCloser{}
	}

	name := p.File
	if !strings.HasSuffix(name, ".log") {
		name += ".log"
	}
	file := &lumberjack.Logger{
		Filename:   name,
		MaxSize:    p.MaxSizeMB,
		MaxBackups: p.MaxBackups,
		MaxAge:     p.MaxAgeDays,
		Compress:   true,
	}

	var out io.Writer = file
	if p.ToStdout {
		out = io.MultiWriter(os.Stdout, file)
	}
	return slog.New(slog.NewTextHandler(out, opts)), file
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
