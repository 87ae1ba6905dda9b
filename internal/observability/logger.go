package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger keeps the key/value call shape used across the app:
//
//	logger.Info("Downloaded", "identifier", id, "bytes", n)
type Logger struct {
	z      zerolog.Logger
	closer io.Closer
}

// NewLogger writes to stderr and, when logPath is set, to a rotating file.
// format is "console" (human readable) or "json".
func NewLogger(logPath, logLevel, format string) *Logger {
	var console io.Writer = os.Stderr
	if strings.ToLower(format) != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	l := &Logger{}
	out := console
	if logPath != "" {
		file := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		l.closer = file
		out = zerolog.MultiLevelWriter(console, file)
	}

	l.z = zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(logLevel))
	return l
}

// NewLoggerWithWriter is used by tests and by callers that already own the
// destination.
func NewLoggerWithWriter(w io.Writer, logLevel string) *Logger {
	return &Logger{z: zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(logLevel))}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{z: zerolog.Nop()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(fields ...interface{}) *Logger {
	return &Logger{z: l.z.With().Fields(fields).Logger(), closer: l.closer}
}

func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.z.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...interface{}) {
	l.z.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.z.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(msg string, fields ...interface{}) {
	l.z.Error().Fields(fields).Msg(msg)
}

// Close flushes the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
