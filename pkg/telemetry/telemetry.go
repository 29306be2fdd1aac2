// Package telemetry provides core.Telemetry sinks.
package telemetry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/entitydoc/pkg/core"
)

// Nop drops every event.
var Nop core.Telemetry = nop{}

type nop struct{}

func (nop) Track(string, map[string]any) {}

// Logger writes events as structured log records.
type Logger struct {
	Log   *slog.Logger
	Level slog.Level
}

// NewLogger returns a sink logging at info level.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{Log: logger, Level: slog.LevelInfo}
}

func (l *Logger) Track(event string, payload map[string]any) {
	if l.Log == nil {
		return
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, payload[k]))
	}
	l.Log.LogAttrs(context.Background(), l.Level, event, attrs...)
}

// Event is one recorded call.
type Event struct {
	Name    string
	Payload map[string]any
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Track(event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Name: event, Payload: payload})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns the recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
