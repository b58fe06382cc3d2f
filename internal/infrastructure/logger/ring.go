package logger

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const defaultRingSize = 100

// Entry is one buffered log line.
type Entry struct {
	Time    time.Time              `json:"time"`
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// Ring is a bounded in-memory buffer of the most recent log entries.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	level   zapcore.LevelEnabler
}

// NewRing creates a ring holding at most size entries.
func NewRing(size int, level zapcore.LevelEnabler) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{entries: make([]Entry, size), level: level}
}

func (r *Ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns the buffered entries, oldest first, optionally filtered by level.
func (r *Ring) Entries(level string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Entry
	if r.full {
		ordered = append(ordered, r.entries[r.next:]...)
	}
	ordered = append(ordered, r.entries[:r.next]...)

	if level == "" {
		return ordered
	}
	out := ordered[:0:0]
	for _, e := range ordered {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Core returns a zapcore.Core writing into the ring.
func (r *Ring) Core() zapcore.Core {
	return &ringCore{LevelEnabler: r.level, ring: r}
}

type ringCore struct {
	zapcore.LevelEnabler
	ring   *Ring
	fields []zapcore.Field
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &ringCore{LevelEnabler: c.LevelEnabler, ring: c.ring, fields: merged}
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	e := Entry{
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Message: ent.Message,
	}
	if len(enc.Fields) > 0 {
		e.Fields = enc.Fields
	}
	c.ring.add(e)
	return nil
}

func (c *ringCore) Sync() error { return nil }
