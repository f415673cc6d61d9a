// Package wireformat defines the JSON wire format for values that cross
// interpreter boundaries: thread channel messages, shared memory entries
// and thread results. Each interpreter has its own heap, so values are
// copied through this encoding rather than shared.
package wireformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
)

// ErrNotTransferable is wrapped by encode errors for values that only make
// sense inside one interpreter, such as functions and userdata.
var ErrNotTransferable = errors.New("value cannot cross interpreters")

// Value kinds.
const (
	KindNil   = "nil"
	KindBool  = "bool"
	KindInt   = "int"
	KindFloat = "float"
	KindStr   = "str"
	KindBytes = "bytes"
	KindList  = "list"
	KindMap   = "map"
	KindTable = "table"
)

// ValueWire is the tagged JSON form of a single value. Tables whose keys
// are not all strings use Entries so integer keys stay integers.
type ValueWire struct {
	Kind    string               `json:"k"`
	Str     string               `json:"s,omitempty"`
	Raw     []byte               `json:"raw,omitempty"`
	List    []ValueWire          `json:"list,omitempty"`
	Int     int64                `json:"i,omitempty"`
	Float   float64              `json:"f,omitempty"`
	Bool    bool                 `json:"b,omitempty"`
	Map     map[string]ValueWire `json:"map,omitempty"`
	Entries []EntryWire          `json:"entries,omitempty"`
}

// EntryWire is one key/value pair of a KindTable value.
type EntryWire struct {
	Key   ValueWire `json:"key"`
	Value ValueWire `json:"val"`
}

// ThreadResultWire carries the return values of a thread back to the
// interpreter that created it.
type ThreadResultWire struct {
	Error  *ErrorDetail `json:"error,omitempty"`
	Values []ValueWire  `json:"values,omitempty"`
}

// ErrorDetail provides structured error information.
// Error Types: "module", "script", "timeout", "config", "exec", "validation", "internal"
type ErrorDetail struct {
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`
	Message string       `json:"message"`
	Type    string       `json:"type"`
	Code    string       `json:"code"`
}

// Error implements the error interface for ErrorDetail.
func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// FromError converts err to its wire form.
func FromError(err error) *ErrorDetail {
	d := derrors.ToErrorDetail(err)
	if d == nil {
		return nil
	}
	var conv func(d *derrors.ErrorDetail) *ErrorDetail
	conv = func(d *derrors.ErrorDetail) *ErrorDetail {
		if d == nil {
			return nil
		}
		return &ErrorDetail{Message: d.Message, Type: d.Type, Code: d.Code, Wrapped: conv(d.Wrapped)}
	}
	return conv(d)
}

// FromValue converts v to its wire form. Supported values are nil, bool,
// int, int64, float64, string, []byte, []any, map[string]any and
// map[any]any, nested arbitrarily. Keys of a map[any]any must be numbers,
// strings or booleans.
func FromValue(v any) (ValueWire, error) {
	switch x := v.(type) {
	case nil:
		return ValueWire{Kind: KindNil}, nil
	case bool:
		return ValueWire{Kind: KindBool, Bool: x}, nil
	case int:
		return ValueWire{Kind: KindInt, Int: int64(x)}, nil
	case int64:
		return ValueWire{Kind: KindInt, Int: x}, nil
	case float64:
		return ValueWire{Kind: KindFloat, Float: x}, nil
	case string:
		if utf8.ValidString(x) {
			return ValueWire{Kind: KindStr, Str: x}, nil
		}
		return ValueWire{Kind: KindStr, Raw: []byte(x)}, nil
	case []byte:
		return ValueWire{Kind: KindBytes, Raw: append([]byte{}, x...)}, nil
	case []any:
		list := make([]ValueWire, len(x))
		for i, item := range x {
			w, err := FromValue(item)
			if err != nil {
				return ValueWire{}, err
			}
			list[i] = w
		}
		return ValueWire{Kind: KindList, List: list}, nil
	case map[string]any:
		m := make(map[string]ValueWire, len(x))
		for k, item := range x {
			w, err := FromValue(item)
			if err != nil {
				return ValueWire{}, err
			}
			m[k] = w
		}
		return ValueWire{Kind: KindMap, Map: m}, nil
	case map[any]any:
		entries := make([]EntryWire, 0, len(x))
		for _, k := range SortedKeys(x) {
			if keyRank(k) > 2 {
				return ValueWire{}, &derrors.WireFormatError{
					Operation: "encode",
					Type:      fmt.Sprintf("%T key", k),
					Err:       ErrNotTransferable,
				}
			}
			kw, err := FromValue(k)
			if err != nil {
				return ValueWire{}, err
			}
			vw, err := FromValue(x[k])
			if err != nil {
				return ValueWire{}, err
			}
			entries = append(entries, EntryWire{Key: kw, Value: vw})
		}
		return ValueWire{Kind: KindTable, Entries: entries}, nil
	}
	return ValueWire{}, &derrors.WireFormatError{
		Operation: "encode",
		Type:      fmt.Sprintf("%T", v),
		Err:       ErrNotTransferable,
	}
}

// ToValue converts w back to a plain value. Integers decode as int.
func (w ValueWire) ToValue() (any, error) {
	switch w.Kind {
	case KindNil, "":
		return nil, nil
	case KindBool:
		return w.Bool, nil
	case KindInt:
		return int(w.Int), nil
	case KindFloat:
		return w.Float, nil
	case KindStr:
		if w.Raw != nil {
			return string(w.Raw), nil
		}
		return w.Str, nil
	case KindBytes:
		return append([]byte{}, w.Raw...), nil
	case KindList:
		out := make([]any, len(w.List))
		for i, item := range w.List {
			v, err := item.ToValue()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindMap:
		out := make(map[string]any, len(w.Map))
		keys := make([]string, 0, len(w.Map))
		for k := range w.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v, err := w.Map[k].ToValue()
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case KindTable:
		out := make(map[any]any, len(w.Entries))
		for _, e := range w.Entries {
			switch e.Key.Kind {
			case KindInt, KindFloat, KindStr, KindBool:
			default:
				return nil, &derrors.WireFormatError{
					Operation: "decode",
					Type:      e.Key.Kind,
					Err:       fmt.Errorf("invalid table key kind %q", e.Key.Kind),
				}
			}
			k, err := e.Key.ToValue()
			if err != nil {
				return nil, err
			}
			v, err := e.Value.ToValue()
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}
	return nil, &derrors.WireFormatError{
		Operation: "decode",
		Type:      w.Kind,
		Err:       fmt.Errorf("unknown value kind %q", w.Kind),
	}
}

// Marshal encodes v as JSON.
func Marshal(v any) ([]byte, error) {
	w, err := FromValue(v)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, &derrors.WireFormatError{Operation: "marshal", Type: w.Kind, Err: err}
	}
	return data, nil
}

// Unmarshal decodes a value produced by Marshal.
func Unmarshal(data []byte) (any, error) {
	var w ValueWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, &derrors.WireFormatError{Operation: "unmarshal", Type: "ValueWire", Err: err}
	}
	return w.ToValue()
}

// Clone deep-copies v through the wire format.
func Clone(v any) (any, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// FromValues converts a list of values.
func FromValues(values []any) ([]ValueWire, error) {
	out := make([]ValueWire, len(values))
	for i, v := range values {
		w, err := FromValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// ToValues converts a list of wire values.
func ToValues(ws []ValueWire) ([]any, error) {
	out := make([]any, len(ws))
	for i, w := range ws {
		v, err := w.ToValue()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
