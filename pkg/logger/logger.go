package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	globalWriter *SmartWriter
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output io.Writer
	// FlushInterval bounds how long a buffered line may wait. Zero means one second.
	FlushInterval time.Duration
}

// FileConfig describes rotation for InitWithFile.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
}

// InitWithFile writes to a rotated file and, when enabled, mirrors to stdout.
func InitWithFile(fc FileConfig, level, format string) error {
	if err := os.MkdirAll(filepath.Dir(fc.Filename), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	rotated := &lumberjack.Logger{
		Filename:   fc.Filename,
		MaxSize:    orDefault(fc.MaxSizeMB, 100),
		MaxBackups: orDefault(fc.MaxBackups, 3),
		MaxAge:     orDefault(fc.MaxAgeDays, 28),
		Compress:   true,
	}

	var out io.Writer = rotated
	if fc.Console {
		out = io.MultiWriter(os.Stdout, rotated)
	}

	Init(Config{Level: level, Format: format, Output: out})
	return nil
}

// Init replaces the global logger. Safe to call again in tests.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.CallerMarshalFunc = shortCaller

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}

	if globalWriter != nil {
		_ = globalWriter.Close()
	}
	sw := NewSmartWriter(out, interval)
	globalWriter = sw

	if cfg.Format == "console" {
		cw := zerolog.ConsoleWriter{
			Out:        sw,
			TimeFormat: "2006-01-02 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-5s", i))
			},
			PartsOrder: []string{
				zerolog.TimestampFieldName,
				zerolog.LevelFieldName,
				zerolog.CallerFieldName,
				zerolog.MessageFieldName,
			},
		}
		globalLogger = zerolog.New(cw).With().Timestamp().Caller().Logger()
		return
	}

	globalLogger = zerolog.New(sw).With().Timestamp().Caller().Logger()
}

// Flush writes out anything still sitting in the buffer.
func Flush() {
	if globalWriter != nil {
		_ = globalWriter.Sync()
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return globalLogger
}

// shortCaller keeps the last two path segments, e.g. machine/state_machine.go:42
func shortCaller(_ uintptr, file string, line int) string {
	seen := 0
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			seen++
			if seen == 2 {
				return fmt.Sprintf("%s:%d", file[i+1:], line)
			}
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
