package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// DefaultFileName is the log file created under Config.Path
const DefaultFileName = "kumex-sdk.log"

// Config holds logger configuration
type Config struct {
	Level      string `json:"level" yaml:"level"`             // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output" yaml:"output"`           // "file", "stdout" or "stderr"
	Path       string `json:"path" yaml:"path"`               // directory of the rotating log file
	FileName   string `json:"file_name" yaml:"file_name"`     // defaults to kumex-sdk.log
	JSONFormat bool   `json:"json_format" yaml:"json_format"` // console output only, files are always JSON
	Component  string `json:"component" yaml:"component"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// ParseLevel converts a level name to a zerolog level, defaulting to debug
// like the SDK's historical default
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG", "":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	case "DISABLED", "OFF":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger from cfg. The returned closer releases the log file
// and is a no-op for console output.
func New(cfg *Config) (zerolog.Logger, io.Closer) {
	if cfg == nil {
		cfg = &Config{}
	}

	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = console(os.Stdout, cfg.JSONFormat)
	case "stderr":
		output = console(os.Stderr, cfg.JSONFormat)
	default:
		rotating := NewRotatingFile(cfg)
		output = rotating
		closer = rotating
	}

	logger := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	if cfg.Component != "" {
		logger = logger.With().Str("component", cfg.Component).Logger()
	}
	return logger, closer
}

// NewRotatingFile returns the lumberjack sink described by cfg
func NewRotatingFile(cfg *Config) *lumberjack.Logger {
	dir := cfg.Path
	if dir == "" {
		dir = os.TempDir()
	}
	name := cfg.FileName
	if name == "" {
		name = DefaultFileName
	}
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		LocalTime:  true,
	}
}

// Nop returns a logger that discards everything
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func console(w io.Writer, jsonFormat bool) io.Writer {
	if jsonFormat {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
