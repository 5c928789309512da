// Package logging configures the process-wide logrus logger. Standard
// output carries the protocol, so log lines go to stderr or to a
// rotated file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xmubeta/outlook-mcp-server/internal/model"
)

// ConfigureLogOutput points the global logger at cfg.File, rotated by
// lumberjack, or at stderr when no file is set. It returns a closer for
// the file writer.
func ConfigureLogOutput(cfg model.LogConfig) (io.Closer, error) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	})
	SetLogLevel(cfg.Level)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, err
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(w)
	return w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetLogLevel sets the global level from a config or flag value.
// "verbose" means debug and "quiet"/"silent" suppress everything below
// fatal. Unknown values fall back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
