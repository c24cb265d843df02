// Package telemetry captures notable log records of a run so they can be
// stored next to its results.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Source  string         `json:"source,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

type recorderState struct {
	mu      sync.Mutex
	entries []Entry
}

// Recorder is a slog.Handler that passes every record to next and keeps a
// copy of those at or above its level.
type Recorder struct {
	next   slog.Handler
	level  slog.Level
	attrs  []slog.Attr
	prefix string
	state  *recorderState
}

// NewRecorder wraps next. Records at or above level are captured.
func NewRecorder(next slog.Handler, level slog.Level) *Recorder {
	return &Recorder{
		next:  next,
		level: level,
		state: &recorderState{},
	}
}

// Enabled implements slog.Handler
func (h *Recorder) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level || h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *Recorder) Handle(ctx context.Context, r slog.Record) error {
	if h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}
	if r.Level < h.level {
		return nil
	}

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = attrValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[h.prefix+a.Key] = attrValue(a.Value)
		return true
	})

	var source string
	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		source = fmt.Sprintf("%s:%d", f.File, f.Line)
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.entries = append(h.state.entries, Entry{
		Time:    r.Time.UTC(),
		Level:   r.Level.String(),
		Message: r.Message,
		Source:  source,
		Attrs:   attrs,
	})
	return nil
}

// Entries returns the captured records in logging order.
func (h *Recorder) Entries() []Entry {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return append([]Entry(nil), h.state.entries...)
}

// WithAttrs implements slog.Handler
func (h *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	return &c
}

// WithGroup implements slog.Handler
func (h *Recorder) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return &c
}

func attrValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = attrValue(a.Value)
		}
		return group
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.Any()
	}
}
