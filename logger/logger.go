package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

/*
LogConfiguration is the logger configuration, loaded from YAML file and
(partially) overridden by command line flags.
*/
type LogConfiguration struct {
	// one of: DEBUG, INFO, WARN, ERROR (case insensitive), default INFO
	Level string `yaml:"defaultLevel"`
	// one of: text, json, console, ecs
	Format string `yaml:"format"`
	// file name or one of the special values: stdout, stderr, discard
	OutputPath string `yaml:"outputPath"`
	// Go time format string, "none" to omit time from output
	TimeFormat string `yaml:"timeFormat"`
	// add source code position of the logging call to the output
	ShowSource bool `yaml:"showSource"`

	writer io.Writer
}

/*
New creates slog.Logger based on configuration. When "cfg" is nil default
configuration is used (text format, INFO level, stderr).
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	h, err := cfg.Handler()
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

/*
NewWithWriter is like New but ignores the OutputPath configuration field
and writes to "w" instead.
*/
func NewWithWriter(cfg LogConfiguration, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		return nil, errors.New("writer is nil")
	}
	cfg.writer = w
	return New(&cfg)
}

func (cfg *LogConfiguration) Handler() (slog.Handler, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.writer
	if out == nil {
		if out, err = cfg.outputWriter(); err != nil {
			return nil, err
		}
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.ShowSource}
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opts), nil
	case "json":
		opts.ReplaceAttr = formatTimeAttr(cfg.TimeFormat)
		return slog.NewJSONHandler(out, opts), nil
	case "ecs":
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatAttrECS)
		return slog.NewJSONHandler(out, opts), nil
	case "console":
		opts.AddSource = false
		opts.ReplaceAttr = formatAttrConsole
		return slog.NewTextHandler(out, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) outputWriter() (io.Writer, error) {
	switch strings.ToLower(cfg.OutputPath) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	case "discard":
		return io.Discard, nil
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return f, nil
	}
}

func parseLevel(level string) (slog.Level, error) {
	if level == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("parsing log level: %w", err)
	}
	return l, nil
}
