package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultLevel is used when FIRELAUNCH_LOG_LEVEL is unset.
const DefaultLevel = "info"

// NewLogger creates a new hclog logger with standard settings
func NewLogger(name string, level string, output io.Writer) hclog.Logger {
	logger, _ := NewLoggerWithFlush(name, level, output)
	return logger
}

// NewLoggerWithFlush is NewLogger plus a function that writes out a partial
// line still buffered by the prefix writer. Call it before the process exits.
func NewLoggerWithFlush(name string, level string, output io.Writer) (hclog.Logger, func() error) {
	if output == nil {
		output = os.Stderr
	}

	flush := func() error { return nil }
	jsonFormat := isJSON()
	if !jsonFormat {
		pw := NewPrefixWriter("🔥 ", output)
		output, flush = pw, pw.Flush
	}

	opts := &hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	}

	return hclog.New(opts), flush
}

// GetLogLevel returns the configured log level from environment
func GetLogLevel() string {
	level := os.Getenv("FIRELAUNCH_LOG_LEVEL")
	if level == "" {
		level = DefaultLevel
	}
	return level
}

// OrNull returns logger, or a logger that discards everything when it is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}

func isJSON() bool {
	switch strings.ToLower(os.Getenv("FIRELAUNCH_JSON_LOG")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
