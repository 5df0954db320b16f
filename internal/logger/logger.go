// Package logger provides process-wide logging for sleepsync.
// Messages are printf-style; structured context (user, run, provider)
// is attached with With. Output is rendered by zerolog as either a
// human-readable console stream or JSON lines.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config configures the global logger.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string
	// Format is console or json.
	Format string
}

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	format            = FormatConsole
	level             = zerolog.InfoLevel
	base              = build()
)

// Init applies level and format. Unknown values fall back to info/console.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	level = parseLevel(cfg.Level)
	format = FormatConsole
	if strings.EqualFold(cfg.Format, FormatJSON) {
		format = FormatJSON
	}
	base = build()
}

// SetVerbose enables or disables verbose (debug) logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = build()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// build must be called with mu held.
func build() zerolog.Logger {
	var w io.Writer = output
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: output, NoColor: true, TimeFormat: time.RFC3339}
	}
	lvl := level
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs a message at debug level.
func Debug(format string, args ...any) {
	l := current()
	l.Debug().Msgf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	l := current()
	l.Info().Msgf(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	l := current()
	l.Warn().Msgf(format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	l := current()
	l.Error().Msgf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	if !IsVerbose() {
		return
	}
	l := current()
	l.Debug().Msgf("=== %s ===", name)
}

// Entry is a logger carrying structured fields.
type Entry struct {
	l zerolog.Logger
}

// With returns an Entry with the given key/value pairs attached.
// Keys must be strings; a trailing key without a value is ignored.
func With(kv ...any) Entry {
	l := current()
	return Entry{l: withFields(l, kv)}
}

// With returns a copy of e with additional key/value pairs.
func (e Entry) With(kv ...any) Entry {
	return Entry{l: withFields(e.l, kv)}
}

// Err returns a copy of e carrying err.
func (e Entry) Err(err error) Entry {
	return Entry{l: e.l.With().Err(err).Logger()}
}

// Debug logs at debug level with e's fields.
func (e Entry) Debug(format string, args ...any) { e.l.Debug().Msgf(format, args...) }

// Info logs at info level with e's fields.
func (e Entry) Info(format string, args ...any) { e.l.Info().Msgf(format, args...) }

// Warn logs at warn level with e's fields.
func (e Entry) Warn(format string, args ...any) { e.l.Warn().Msgf(format, args...) }

// Error logs at error level with e's fields.
func (e Entry) Error(format string, args ...any) { e.l.Error().Msgf(format, args...) }

func withFields(l zerolog.Logger, kv []any) zerolog.Logger {
	ctx := l.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ctx = ctx.Interface(key, kv[i+1])
	}
	return ctx.Logger()
}
