// Package logger builds pacer's slog logger from LoggingConfig. Records go to
// stderr unless configured otherwise, keeping stdout free for paced output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"pacer/internal/models"
	"pacer/internal/version"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Setup resolves cfg.Output and builds the logger on it. The Closer is
// non-nil only for file output and belongs to the caller.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	w, closer, err := openWriter(cfg.Output, cfg.FilePath, os.Stdout, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	log, err := New(cfg, ver, w)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, nil, err
	}
	return log, closer, nil
}

// New builds a logger writing to w. Every record carries the build version
// and instance ID.
func New(cfg models.LoggingConfig, ver version.Info, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("version", ver.Version),
		slog.String("instance_id", ver.InstanceID),
	), nil
}

func parseLevel(name string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %q", name)
	}
	return level, nil
}

// openWriter maps an output name to a writer. Unknown names log to stderr.
func openWriter(output, filePath string, stdout, stderr io.Writer) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return stdout, nil, nil
	case "file":
		if filePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
		}
		return f, f, nil
	default:
		return stderr, nil, nil
	}
}
