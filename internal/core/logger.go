package core

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ConfigLogger is the key for the pipeline's logger
const ConfigLogger = "Core.Logger"

// Logger defines the output interface used by citheater components.
type Logger interface {
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
	Critical(...interface{})
	Criticalf(string, ...interface{})
}

// LogConfig selects the minimum level and the output format of NewLoggerWithConfig().
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string
	// Format is either "console" or "json".
	Format string
	// Output is where the records go; os.Stderr if nil.
	Output io.Writer
}

// DefaultLogger is the default logger used by a pipeline, and wraps zerolog.
type DefaultLogger struct {
	Z zerolog.Logger
}

// NewLogger returns a configured default logger which writes human-readable lines to stderr.
func NewLogger() *DefaultLogger {
	return NewLoggerWithConfig(LogConfig{Level: "info", Format: "console"})
}

// NewLoggerWithConfig creates a DefaultLogger according to LogConfig.
func NewLoggerWithConfig(cfg LogConfig) *DefaultLogger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Format != "json" {
		noColor := true
		if f, ok := output.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
		}
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		}
	}
	z := zerolog.New(output).Level(ParseLogLevel(cfg.Level)).With().Timestamp().Logger()
	return &DefaultLogger{Z: z}
}

// ParseLogLevel converts the textual level to zerolog.Level. Unknown values map to info.
func ParseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
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

// Info writes to info logger
func (d *DefaultLogger) Info(v ...interface{}) { d.Z.Info().Msg(fmt.Sprint(v...)) }

// Infof writes to info logger
func (d *DefaultLogger) Infof(f string, v ...interface{}) { d.Z.Info().Msgf(f, v...) }

// Warn writes to the warning logger
func (d *DefaultLogger) Warn(v ...interface{}) { d.Z.Warn().Msg(fmt.Sprint(v...)) }

// Warnf writes to the warning logger
func (d *DefaultLogger) Warnf(f string, v ...interface{}) { d.Z.Warn().Msgf(f, v...) }

// Error writes to the error logger
func (d *DefaultLogger) Error(v ...interface{}) { d.Z.Error().Msg(fmt.Sprint(v...)) }

// Errorf writes to the error logger
func (d *DefaultLogger) Errorf(f string, v ...interface{}) { d.Z.Error().Msgf(f, v...) }

// Critical writes to the error logger together with the location of the caller.
func (d *DefaultLogger) Critical(v ...interface{}) {
	d.Z.Error().Caller(1).Msg(fmt.Sprint(v...))
}

// Criticalf writes to the error logger together with the location of the caller.
func (d *DefaultLogger) Criticalf(f string, v ...interface{}) {
	d.Z.Error().Caller(1).Msgf(f, v...)
}
