package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is the logging interface used across the service. Keyvals are
// alternating key/value pairs appended to the message.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
	With(keyvals ...interface{}) Logger
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

func (l level) String() string {
	switch l {
	case levelDebug:
		return "DEBUG"
	case levelInfo:
		return "INFO"
	case levelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

type stdLogger struct {
	out     *log.Logger
	errOut  *log.Logger
	min     level
	context string
}

// New creates a logger writing to stdout/stderr. Level is one of
// debug, info, warn, error; anything else defaults to info.
func New(levelName string) Logger {
	return &stdLogger{
		out:    log.New(os.Stdout, "", log.Ldate|log.Ltime),
		errOut: log.New(os.Stderr, "", log.Ldate|log.Ltime),
		min:    parseLevel(levelName),
	}
}

func parseLevel(name string) level {
	switch strings.ToLower(name) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *stdLogger) Debug(msg string, keyvals ...interface{}) { l.log(levelDebug, msg, keyvals) }
func (l *stdLogger) Info(msg string, keyvals ...interface{})  { l.log(levelInfo, msg, keyvals) }
func (l *stdLogger) Warn(msg string, keyvals ...interface{})  { l.log(levelWarn, msg, keyvals) }
func (l *stdLogger) Error(msg string, keyvals ...interface{}) { l.log(levelError, msg, keyvals) }

// With returns a logger that appends the given pairs to every line.
func (l *stdLogger) With(keyvals ...interface{}) Logger {
	child := *l
	child.context = appendKeyvals(l.context, keyvals)
	return &child
}

func (l *stdLogger) log(lv level, msg string, keyvals []interface{}) {
	if lv < l.min {
		return
	}

	line := lv.String() + ": " + msg
	if l.context != "" {
		line += " " + l.context
	}
	line = appendKeyvals(line, keyvals)

	if lv >= levelError {
		l.errOut.Println(line)
		return
	}
	l.out.Println(line)
}

func appendKeyvals(base string, keyvals []interface{}) string {
	var b strings.Builder
	b.WriteString(base)

	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprintf("%v", keyvals[i])
		value := "missing"

		if i+1 < len(keyvals) {
			value = fmt.Sprintf("%v", keyvals[i+1])
		}

		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(key + "=" + value)
	}

	return b.String()
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}

func (n nopLogger) With(...interface{}) Logger { return n }
