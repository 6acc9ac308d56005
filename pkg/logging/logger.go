package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// EnvLogLevel selects the log level when no --log-level flag is given.
	EnvLogLevel = "MFGAMES_DOAP_LOG_LEVEL"
	// EnvJSONLog switches output to JSON lines when set to "1".
	EnvJSONLog = "MFGAMES_DOAP_JSON_LOG"
	// EnvLogPath redirects log output to a file (appended).
	EnvLogPath = "MFGAMES_DOAP_LOG_PATH"

	// DefaultLevel is used when neither the flag nor the environment sets one.
	DefaultLevel = "warn"

	textPrefix = "📜 "
)

// NewLogger creates a new hclog logger with standard settings.
//
// The level string accepts the hclog names (trace, debug, info, warn, error)
// and an optional "json:" prefix, e.g. "json:debug", which forces JSON output
// regardless of the environment.
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	actual, jsonFormat := splitLevel(level)
	if os.Getenv(EnvJSONLog) == "1" {
		jsonFormat = true
	}

	if !jsonFormat {
		output = NewPrefixWriter(textPrefix, output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(actual),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// ResolveLevel picks the effective log level and reports where it came from.
// Priority: explicit value, then MFGAMES_DOAP_LOG_LEVEL, then DefaultLevel.
func ResolveLevel(cliLevel string) (level, source string) {
	if cliLevel != "" {
		return cliLevel, "--log-level"
	}
	if env := os.Getenv(EnvLogLevel); env != "" {
		return env, EnvLogLevel
	}
	return DefaultLevel, "default"
}

// OpenOutput returns the writer logs should go to. When MFGAMES_DOAP_LOG_PATH
// names a file that can be opened it is used, otherwise stderr. The returned
// close function is always safe to call.
func OpenOutput() (io.Writer, func() error) {
	if path := os.Getenv(EnvLogPath); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return f, f.Close
		}
	}
	return os.Stderr, func() error { return nil }
}

// OrNull returns logger, or a discarding logger when it is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}

func splitLevel(level string) (string, bool) {
	if !strings.HasPrefix(level, "json") {
		return level, false
	}
	if _, rest, ok := strings.Cut(level, ":"); ok && rest != "" {
		return rest, true
	}
	return "info", true
}
