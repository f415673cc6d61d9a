package log

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Entry is a captured log record in a flat, comparable form.
type Entry struct {
	Time    time.Time     `json:"time"`
	Attrs   []LogAttrWire `json:"attrs,omitempty"`
	Level   string        `json:"level"`
	Message string        `json:"message"`
}

// Attr returns the value of the attribute named key.
func (e Entry) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// LogAttrWire represents a single slog attribute as typed text.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`  // "string", "int64", "bool", "float64", "time", "error", "any"
	Value string `json:"value"` // String representation of the value
}

// Recorder is a slog.Handler that keeps every record in memory. Hosts use it
// to surface registration logs in diagnostics and tests use it to assert on
// them.
type Recorder struct {
	state *recorderState
	attrs []LogAttrWire
	level slog.Level
}

type recorderState struct {
	entries []Entry
	mu      sync.Mutex
}

// NewRecorder creates a Recorder keeping records at level and above.
func NewRecorder(level slog.Level) *Recorder {
	return &Recorder{state: &recorderState{}, level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (r *Recorder) Enabled(_ context.Context, level slog.Level) bool {
	return level >= r.level
}

// Handle stores the record.
func (r *Recorder) Handle(_ context.Context, record slog.Record) error {
	e := Entry{
		Time:    record.Time,
		Level:   record.Level.String(),
		Message: record.Message,
		Attrs:   append([]LogAttrWire(nil), r.attrs...),
	}
	record.Attrs(func(a slog.Attr) bool {
		e.Attrs = append(e.Attrs, toLogAttrWire(a))
		return true
	})
	r.state.mu.Lock()
	r.state.entries = append(r.state.entries, e)
	r.state.mu.Unlock()
	return nil
}

// WithAttrs returns a Recorder sharing storage that adds attrs to every
// record.
func (r *Recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *r
	n.attrs = append([]LogAttrWire(nil), r.attrs...)
	for _, a := range attrs {
		n.attrs = append(n.attrs, toLogAttrWire(a))
	}
	return &n
}

// WithGroup returns the Recorder unchanged; groups are flattened.
func (r *Recorder) WithGroup(string) slog.Handler {
	n := *r
	return &n
}

// Entries returns a copy of the captured records.
func (r *Recorder) Entries() []Entry {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	return append([]Entry(nil), r.state.entries...)
}

// Messages returns the captured messages in order.
func (r *Recorder) Messages() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

// toLogAttrWire converts a slog.Attr to LogAttrWire.
func toLogAttrWire(attr slog.Attr) LogAttrWire {
	wire := LogAttrWire{
		Key: attr.Key,
	}
	// Resolve the attribute value
	attr.Value = attr.Value.Resolve()

	switch attr.Value.Kind() {
	case slog.KindString:
		wire.Type = "string"
		wire.Value = attr.Value.String()
	case slog.KindInt64:
		wire.Type = "int64"
		wire.Value = fmt.Sprintf("%d", attr.Value.Int64())
	case slog.KindUint64:
		wire.Type = "uint64"
		wire.Value = fmt.Sprintf("%d", attr.Value.Uint64())
	case slog.KindBool:
		wire.Type = "bool"
		wire.Value = fmt.Sprintf("%t", attr.Value.Bool())
	case slog.KindFloat64:
		wire.Type = "float64"
		wire.Value = fmt.Sprintf("%f", attr.Value.Float64())
	case slog.KindTime:
		wire.Type = "time"
		wire.Value = attr.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		wire.Type = "duration"
		wire.Value = attr.Value.Duration().String()
	case slog.KindAny:
		if v := attr.Value.Any(); v != nil {
			if err, isErr := v.(error); isErr {
				wire.Type = "error"
				wire.Value = err.Error()
			} else if data, marshalErr := json.Marshal(v); marshalErr == nil {
				wire.Type = "json"
				wire.Value = string(data)
			} else {
				wire.Type = "any"
				wire.Value = fmt.Sprintf("%v", v)
			}
		} else {
			wire.Type = "any"
			wire.Value = "<nil>"
		}
	case slog.KindGroup:
		// Slog groups are flattened by the handler before reaching here in many implementations,
		// but if we receive a group kind, we treat it as 'any' for the wire format
		// since our flat structure doesn't support recursive groups well yet.
		// A full implementation would flatten this recursively.
		wire.Type = "group"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	case slog.KindLogValuer:
		return toLogAttrWire(slog.Attr{Key: attr.Key, Value: attr.Value.LogValuer().LogValue()})
	default:
		wire.Type = "any"
		wire.Value = fmt.Sprintf("%v", attr.Value.Any())
	}
	return wire
}
