package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Logger is the logging contract used across dealflow. It matches the
// method set of go-logger's glog.Logger so either can be injected.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger allows attaching structured fields to a logger.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}

// Level orders log severities.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "LEVEL(" + fmt.Sprint(int(l)) + ")"
}

// ParseLevel maps a level name to a Level, falling back to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// BasicLogger writes one line per entry. Fields are sorted so output is
// stable in tests.
type BasicLogger struct {
	Writer   io.Writer
	Name     string
	MinLevel Level
	fields   map[string]any
	mu       *sync.Mutex
}

// Default returns the shared fallback logger.
func Default() Logger {
	return defaultLogger
}

// NewBasicLogger constructs a BasicLogger writing to stdout.
func NewBasicLogger(name string) *BasicLogger {
	return &BasicLogger{
		Writer:   os.Stdout,
		Name:     strings.TrimSpace(name),
		MinLevel: LevelInfo,
		mu:       &sync.Mutex{},
	}
}

// Named returns a child logger with a dotted name.
func (l *BasicLogger) Named(name string) *BasicLogger {
	child := l.clone()
	name = strings.TrimSpace(name)
	switch {
	case name == "":
	case child.Name == "":
		child.Name = name
	default:
		child.Name = child.Name + "." + name
	}
	return child
}

// WithFields implements FieldsLogger.
func (l *BasicLogger) WithFields(fields map[string]any) Logger {
	if len(fields) == 0 && l != nil {
		return l
	}
	child := l.clone()
	if child.fields == nil {
		child.fields = make(map[string]any, len(fields))
	}
	for key, value := range fields {
		child.fields[key] = value
	}
	return child
}

// WithContext implements Logger.
func (l *BasicLogger) WithContext(context.Context) Logger { return l }

func (l *BasicLogger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args...) }
func (l *BasicLogger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }
func (l *BasicLogger) Info(msg string, args ...any)  { l.log(LevelInfo, msg, args...) }
func (l *BasicLogger) Warn(msg string, args ...any)  { l.log(LevelWarn, msg, args...) }
func (l *BasicLogger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// Fatal logs at fatal level. It never exits the process.
func (l *BasicLogger) Fatal(msg string, args ...any) { l.log(LevelFatal, msg, args...) }

func (l *BasicLogger) log(level Level, msg string, args ...any) {
	if l == nil || level < l.MinLevel {
		return
	}
	out := l.Writer
	if out == nil {
		out = os.Stdout
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level.String())
	b.WriteString("] ")
	if l.Name != "" {
		b.WriteString(l.Name)
		b.WriteString(": ")
	}
	b.WriteString(msg)
	for _, pair := range pairs(l.fields, args) {
		b.WriteString(" ")
		b.WriteString(pair)
	}
	b.WriteString("\n")

	mu := l.mu
	if mu == nil {
		mu = &globalMu
	}
	mu.Lock()
	defer mu.Unlock()
	_, _ = io.WriteString(out, b.String())
}

func (l *BasicLogger) clone() *BasicLogger {
	if l == nil {
		return NewBasicLogger("")
	}
	child := &BasicLogger{
		Writer:   l.Writer,
		Name:     l.Name,
		MinLevel: l.MinLevel,
		mu:       l.mu,
	}
	if len(l.fields) > 0 {
		child.fields = make(map[string]any, len(l.fields))
		for key, value := range l.fields {
			child.fields[key] = value
		}
	}
	return child
}

func pairs(fields map[string]any, args []any) []string {
	out := make([]string, 0, len(fields)+len(args)/2+1)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, fmt.Sprintf("%s=%v", key, fields[key]))
		}
	}
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			out = append(out, fmt.Sprintf("%v", args[i]))
			break
		}
		out = append(out, fmt.Sprintf("%v=%v", args[i], args[i+1]))
	}
	return out
}

var globalMu sync.Mutex

var defaultLogger Logger = NewBasicLogger("dealflow")

var _ Logger = (*BasicLogger)(nil)
var _ FieldsLogger = (*BasicLogger)(nil)
