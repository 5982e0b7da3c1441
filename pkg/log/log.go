package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger = zerolog.Nop()

	// buffer holds log lines between flushes when buffered output is enabled
	buffer *BufferedWriter

	// output is the writer behind Logger: the console writer or the raw
	// JSON sink
	output io.Writer = io.Discard
)

// Level represents log level
type Level string

const (
	TraceLevel Level = "trace"
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// Buffered holds every line in memory until Flush is called
	Buffered bool
}

// Init initializes the global logger
func Init(cfg Config) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	// Configure output
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	buffer = nil
	if cfg.Buffered {
		buffer = NewBufferedWriter(out)
		out = buffer
	}

	// Use JSON or console output. The console writer also renders relayed
	// module lines, which arrive as JSON.
	output = out
	if !cfg.JSONOutput {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	Logger = zerolog.New(output).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info
func ParseLevel(l Level) zerolog.Level {
	switch l {
	case TraceLevel:
		return zerolog.TraceLevel
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Flush writes out buffered lines. It is a no-op for unbuffered loggers.
func Flush() error {
	if buffer == nil {
		return nil
	}
	return buffer.Flush()
}

// Output returns the writer behind the global logger. It takes one JSON
// event per Write, so relayed module logs written here are formatted and
// buffered like our own.
func Output() io.Writer {
	return output
}

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNodeID adds the node_id field to logger
func WithNodeID(logger zerolog.Logger, nodeID string) zerolog.Logger {
	return logger.With().Str("node_id", nodeID).Logger()
}

// WithOperation adds the operation field to logger
func WithOperation(logger zerolog.Logger, op string) zerolog.Logger {
	return logger.With().Str("operation", op).Logger()
}

// WithTarget adds the target field to logger
func WithTarget(logger zerolog.Logger, targetID string) zerolog.Logger {
	return logger.With().Str("target", targetID).Logger()
}
