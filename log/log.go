// Package log implements a small leveled, structured logger in the style
// of github.com/One-com/gone/log: level methods named after syslog
// priorities, a KV map for structured fields, and *ok() guard functions so
// hot paths can skip formatting work when a level is disabled.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Priority mirrors syslog severity levels, most severe first.
type Priority int

const (
	CRIT Priority = iota
	ERROR
	WARN
	NOTICE
	INFO
	DEBUG
)

func (p Priority) String() string {
	switch p {
	case CRIT:
		return "crit"
	case ERROR:
		return "error"
	case WARN:
		return "warn"
	case NOTICE:
		return "notice"
	case INFO:
		return "info"
	case DEBUG:
		return "debug"
	}
	return "unknown"
}

// KV is a map of key/value pairs attached to a log event for structured
// logging. Passing a KV to a level method expands it in place of a flat
// vararg list.
type KV map[string]interface{}

func (kv KV) toArray() []interface{} {
	arr := make([]interface{}, 0, len(kv)*2)
	for k, v := range kv {
		arr = append(arr, k, v)
	}
	return arr
}

func normalize(ctx []interface{}) []interface{} {
	if len(ctx) == 1 {
		if m, ok := ctx[0].(KV); ok {
			return m.toArray()
		}
	}
	if len(ctx)%2 != 0 {
		ctx = append(append([]interface{}{}, ctx[:len(ctx)-1]...), "LOG_ERROR", "odd number of KV args, dropped last")
	}
	return ctx
}

// LogFunc is what the *ok() guard functions return: call it to actually
// emit the message once the caller has decided the level is enabled.
type LogFunc func(msg string, kv ...interface{})

// Logger is a named, leveled logger. It carries a tag (the equivalent of
// ATS's Debug() tag), but only the level decides what is emitted.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	tag   string
	level Priority
}

// New creates a Logger writing to w, gated at level, tagged with tag. The
// tag is stored but not consulted when deciding whether to emit.
func New(w io.Writer, tag string, level Priority) *Logger {
	return &Logger{out: w, tag: tag, level: level}
}

var defaultLogger = New(os.Stderr, "", NOTICE)

// Default returns the process-wide default Logger.
func Default() *Logger { return defaultLogger }

// SetLevel adjusts the minimum level a Logger will emit.
func (l *Logger) SetLevel(p Priority) {
	l.mu.Lock()
	l.level = p
	l.mu.Unlock()
}

// Does reports whether the logger currently emits events at level p.
func (l *Logger) Does(p Priority) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return p <= l.level
}

func (l *Logger) log(p Priority, msg string, kv ...interface{}) {
	kv = normalize(kv)
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %-6s %s", time.Now().UTC().Format(time.RFC3339Nano), p, msg)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", kv[i], kv[i+1])
	}
	fmt.Fprintln(l.out)
}

// CRIT logs msg at CRIT level with optional KV fields.
func (l *Logger) CRIT(msg string, kv ...interface{}) {
	if l.Does(CRIT) {
		l.log(CRIT, msg, kv...)
	}
}

// ERROR logs msg at ERROR level with optional KV fields.
func (l *Logger) ERROR(msg string, kv ...interface{}) {
	if l.Does(ERROR) {
		l.log(ERROR, msg, kv...)
	}
}

// WARN logs msg at WARN level with optional KV fields.
func (l *Logger) WARN(msg string, kv ...interface{}) {
	if l.Does(WARN) {
		l.log(WARN, msg, kv...)
	}
}

// NOTICE logs msg at NOTICE level with optional KV fields.
func (l *Logger) NOTICE(msg string, kv ...interface{}) {
	if l.Does(NOTICE) {
		l.log(NOTICE, msg, kv...)
	}
}

// INFO logs msg at INFO level with optional KV fields.
func (l *Logger) INFO(msg string, kv ...interface{}) {
	if l.Does(INFO) {
		l.log(INFO, msg, kv...)
	}
}

// DEBUG logs msg at DEBUG level with optional KV fields.
func (l *Logger) DEBUG(msg string, kv ...interface{}) {
	if l.Does(DEBUG) {
		l.log(DEBUG, msg, kv...)
	}
}

// DEBUGok returns whether debug logging is enabled and, if so, a LogFunc to
// call. This lets call sites avoid building KV arguments at all on the
// common path where debug logging is off:
//
//	if logf, ok := logger.DEBUGok(); ok {
//	    logf("acquire", log.KV{"addr": addr})
//	}
func (l *Logger) DEBUGok() (LogFunc, bool) { return l.DEBUG, l.Does(DEBUG) }

// WARNok returns whether warn logging is enabled and, if so, a LogFunc to call.
func (l *Logger) WARNok() (LogFunc, bool) { return l.WARN, l.Does(WARN) }
