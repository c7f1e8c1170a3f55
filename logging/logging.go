// Package logging provides leveled, component-scoped log output for the
// transport, multiplexer and CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelOff   Level = "OFF"
)

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelOff:   4,
}

// ParseLevel converts a config or flag value ("debug", "warn", ...) into a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if level == "WARNING" {
		level = LevelWarn
	}
	if _, ok := levelPriority[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger writes lines in the form: LEVEL TIMESTAMP [component] message key=value ...
// Loggers derived with WithComponent/WithConnID share the output and its lock.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	connID    string
}

// New creates a Logger writing INFO and above to stderr.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   io.Discard,
		minLevel: LevelOff,
	}
}

func (l *Logger) clone() *Logger {
	c := *l
	return &c
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	c := l.clone()
	c.component = component
	return c
}

// WithConnID returns a new logger tagging every line with a connection id.
func (l *Logger) WithConnID(connID string) *Logger {
	c := l.clone()
	c.connID = connID
	return c
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return levelPriority[level] >= levelPriority[l.minLevel]
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if level == LevelOff {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	merged := make(map[string]interface{})
	if l.connID != "" {
		merged["conn"] = l.connID
	}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	fieldStr := formatFields(merged)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.output.Write([]byte(line))
}

// --- Connection lifecycle events ---

// ConnectionOpened logs a successful dial.
func (l *Logger) ConnectionOpened(path string) {
	l.Info("connection_opened", map[string]interface{}{
		"socket": path,
	})
}

// ConnectionClosed logs the end of a connection, with the terminating error if any.
func (l *Logger) ConnectionClosed(path string, err error) {
	fields := map[string]interface{}{
		"socket": path,
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Warn("connection_closed", fields)
		return
	}
	l.Info("connection_closed", fields)
}

// LoopExited logs the end of a transport or multiplexer loop.
func (l *Logger) LoopExited(loop string, err error) {
	fields := map[string]interface{}{
		"loop": loop,
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("loop_exited", fields)
		return
	}
	l.Debug("loop_exited", fields)
}

// --- Per-message events ---

// DecodeFailed logs a connection-fatal decode error.
func (l *Logger) DecodeFailed(buffered int, err error) {
	l.Error("decode_failed", map[string]interface{}{
		"buffered": buffered,
		"error":    err.Error(),
	})
}

// ValueSkipped logs a well-formed value on the stream that was not a routable reply.
func (l *Logger) ValueSkipped(size int) {
	l.Debug("value_skipped", map[string]interface{}{
		"bytes": size,
	})
}

// ReplyDiscarded logs a reply that had no pending caller.
func (l *Logger) ReplyDiscarded(id uint64) {
	l.Debug("reply_discarded", map[string]interface{}{
		"id": id,
	})
}

// RequestTimedOut logs a call whose deadline elapsed.
func (l *Logger) RequestTimedOut(id uint64, method string, timeout time.Duration) {
	l.Warn("request_timed_out", map[string]interface{}{
		"id":      id,
		"method":  method,
		"timeout": timeout.String(),
	})
}

// PendingDrained logs how many waiters were released on shutdown.
func (l *Logger) PendingDrained(count int) {
	if count == 0 {
		l.Debug("pending_drained", map[string]interface{}{"count": 0})
		return
	}
	l.Warn("pending_drained", map[string]interface{}{
		"count": count,
	})
}

// CallComplete logs the outcome of a facade call.
func (l *Logger) CallComplete(method string, id uint64, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"method":   method,
		"id":       id,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Debug("call_failed", fields)
		return
	}
	l.Debug("call_complete", fields)
}
