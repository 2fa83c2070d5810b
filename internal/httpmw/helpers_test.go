package httpmw

import (
	"context"
	"sync"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
)

type logEntry struct {
	level string
	msg   string
	err   error
	kv    []any
}

// captureLogger records every call. With accumulates fields into the
// entries written by the derived logger.
type captureLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (c *captureLogger) With(kv ...any) log.Logger {
	f := append(append([]any{}, c.fields...), kv...)
	return &captureLogger{mu: c.mu, entries: c.entries, fields: f}
}

func (c *captureLogger) add(level string, err error, msg string, kv []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := append(append([]any{}, c.fields...), kv...)
	*c.entries = append(*c.entries, logEntry{level: level, msg: msg, err: err, kv: all})
}

func (c *captureLogger) Debug(_ context.Context, msg string, kv ...any) { c.add("debug", nil, msg, kv) }
func (c *captureLogger) Info(_ context.Context, msg string, kv ...any)  { c.add("info", nil, msg, kv) }
func (c *captureLogger) Warn(_ context.Context, msg string, kv ...any)  { c.add("warn", nil, msg, kv) }
func (c *captureLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	c.add("error", err, msg, kv)
}
func (c *captureLogger) Sync() error { return nil }

func (c *captureLogger) all() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]logEntry{}, *c.entries...)
}

// field returns the value of key in e, and whether it was present.
func (e logEntry) field(key string) (any, bool) {
	for i := 0; i+1 < len(e.kv); i += 2 {
		if k, _ := e.kv[i].(string); k == key {
			return e.kv[i+1], true
		}
	}
	return nil, false
}
