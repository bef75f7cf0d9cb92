package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level represents log severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger is a leveled printf-style logger. A nil *Logger discards everything.
type Logger struct {
	min  Level
	zlog zerolog.Logger
}

// New logs human-readable lines to stderr, or JSON lines to stdout when jsonOut is set.
func New(level string, jsonOut bool) *Logger {
	if jsonOut {
		return NewWriter(level, true, os.Stdout)
	}
	return NewWriter(level, false, os.Stderr)
}

// NewWriter logs to out.
func NewWriter(level string, jsonOut bool, out io.Writer) *Logger {
	if !jsonOut {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: true}
	}
	min := ParseLevel(level)
	z := zerolog.New(out).Level(min.zerolog()).With().Timestamp().Logger()
	return &Logger{min: min, zlog: z}
}

// Discard returns a logger that drops all output. The TUI uses it when no log file is set.
func Discard() *Logger {
	return &Logger{min: Error + 1, zlog: zerolog.Nop()}
}

// With returns a child logger that adds key=value to every line.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{min: l.min, zlog: l.zlog.With().Interface(key, value).Logger()}
}

func (l *Logger) Enabled(v Level) bool { return l != nil && v >= l.min }

func (l *Logger) Debugf(format string, a ...any) { l.log(Debug, format, a...) }
func (l *Logger) Infof(format string, a ...any)  { l.log(Info, format, a...) }
func (l *Logger) Warnf(format string, a ...any)  { l.log(Warn, format, a...) }
func (l *Logger) Errorf(format string, a ...any) { l.log(Error, format, a...) }

func (l *Logger) log(level Level, format string, a ...any) {
	if !l.Enabled(level) {
		return
	}
	var ev *zerolog.Event
	switch level {
	case Debug:
		ev = l.zlog.Debug()
	case Warn:
		ev = l.zlog.Warn()
	case Error:
		ev = l.zlog.Error()
	default:
		ev = l.zlog.Info()
	}
	ev.Msg(fmt.Sprintf(format, a...))
}

// retryLogger adapts Logger to retryablehttp.LeveledLogger.
type retryLogger struct{ l *Logger }

// Leveled returns a view of l usable as a retryablehttp.LeveledLogger.
func (l *Logger) Leveled() interface {
	Error(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
} {
	return retryLogger{l: l}
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Errorf("%s %s", msg, kvString(kv)) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warnf("%s %s", msg, kvString(kv)) }

// Info and Debug from the retry client are request chatter; keep them at debug.
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debugf("%s %s", msg, kvString(kv)) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debugf("%s %s", msg, kvString(kv)) }

func kvString(kv []interface{}) string {
	var sb strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		v := fmt.Sprint(kv[i+1])
		if k := fmt.Sprint(kv[i]); k == "url" || k == "URL" {
			v = SanitizeURL(v)
		}
		fmt.Fprintf(&sb, "%v=%s", kv[i], v)
	}
	return sb.String()
}
