package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"

	"tipflow/internal/config"
)

// Options describes how New builds a logger.
type Options struct {
	Level  string
	Format string // "console" (default) or "json"
	// OutputPaths lists "stdout", "stderr", or file paths. Empty means stdout.
	OutputPaths []string
	// FilePath, when set, additionally receives every record as JSON
	// regardless of Format. `tipflow logs` reads this file.
	FilePath    string
	Development bool
	// Color enables ANSI level colours when the only output is a terminal.
	Color bool
}

// New builds a logger from opts. Source locations are attached in
// development mode and whenever debug output is enabled.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	withSource := opts.Development || level.Level() <= slog.LevelDebug

	paths := uniquePaths(opts.OutputPaths)
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	out, err := openSinks(paths)
	if err != nil {
		return nil, err
	}

	var primary slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		color := opts.Color && len(paths) == 1 && paths[0] == "stdout" && isTerminal(os.Stdout)
		primary = newConsoleHandler(out, level, withSource, color)
	case "json":
		primary = newJSONHandler(out, level, withSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if strings.TrimSpace(opts.FilePath) == "" {
		return slog.New(primary), nil
	}
	file, err := openSinks([]string{opts.FilePath})
	if err != nil {
		return nil, err
	}
	return slog.New(tee(primary, newJSONHandler(file, level, withSource))), nil
}

// NewFromConfig builds the daemon and CLI logger: console (or JSON) on
// stdout plus the JSON log file under cfg.Paths.LogDir.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Color: true})
	}

	root := parseLevel(cfg.Logging.Level)
	// Sinks run at the most verbose level any step override needs; the
	// root logger then filters back up to the configured level.
	sinkLevel := root
	for _, value := range cfg.Logging.StepOverrides {
		sinkLevel = min(sinkLevel, parseLevel(value))
	}

	opts := Options{
		Level:  strings.ToLower(levelLabel(sinkLevel)),
		Format: cfg.Logging.Format,
		Color:  true,
	}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = cfg.LogFilePath()
	}
	logger, err := New(opts)
	if err != nil {
		return nil, err
	}
	if sinkLevel < root {
		logger = WithLevelOverride(logger, root)
	}
	return logger, nil
}

// ParseLevel maps a configured level name onto a slog level. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	return parseLevel(level)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func uniquePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func openSinks(paths []string) (io.Writer, error) {
	writers := make([]io.Writer, 0, len(paths))
	for _, p := range paths {
		w, err := openSink(p)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openSink(path string) (io.Writer, error) {
	switch path {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "":
		return nil, errors.New("log output path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

func isTerminal(f *os.File) bool {
	return f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
