package wireformat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
)

func TestClone(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int", 42, 42},
		{"int64 decodes as int", int64(-7), -7},
		{"float", 1.5, 1.5},
		{"string", "héllo", "héllo"},
		{"binary string", "\xff\x00", "\xff\x00"},
		{"bytes", []byte{1, 2}, []byte{1, 2}},
		{"nested", map[string]any{"a": []any{1, map[string]any{"b": false}}}, map[string]any{"a": []any{1, map[string]any{"b": false}}}},
		{"mixed keys stay typed", map[any]any{1: 10, 2: 20, "n": 2}, map[any]any{1: 10, 2: 20, "n": 2}},
		{"table keys", map[any]any{true: "t", 1.5: "f", int64(3): []any{"x"}}, map[any]any{true: "t", 1.5: "f", 3: []any{"x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Clone(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromValue_NotTransferable(t *testing.T) {
	_, err := FromValue([]any{1, func() {}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTransferable)

	var wfErr *derrors.WireFormatError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "encode", wfErr.Operation)
	assert.Equal(t, "func()", wfErr.Type)
}

func TestMarshal_Shape(t *testing.T) {
	data, err := Marshal(map[string]any{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"map","map":{"n":{"k":"int","i":1}}}`, string(data))
}

func TestMarshal_TableShape(t *testing.T) {
	data, err := Marshal(map[any]any{"n": 2, 1: 10, false: "f"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"table","entries":[
		{"key":{"k":"bool"},"val":{"k":"str","s":"f"}},
		{"key":{"k":"int","i":1},"val":{"k":"int","i":10}},
		{"key":{"k":"str","s":"n"},"val":{"k":"int","i":2}}
	]}`, string(data))

	v, err := Unmarshal(data)
	require.NoError(t, err)
	got := v.(map[any]any)
	assert.Equal(t, 10, got[1])
	assert.NotContains(t, got, "1")
}

func TestFromValue_TableKeyNotTransferable(t *testing.T) {
	_, err := FromValue(map[any]any{[2]int{1, 2}: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotTransferable)

	var wfErr *derrors.WireFormatError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "[2]int key", wfErr.Type)
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[any]any{"b": 1, 10: 1, true: 1, "a": 1, 2.5: 1, false: 1, int64(-1): 1})
	assert.Equal(t, []any{false, true, int64(-1), 2.5, 10, "a", "b"}, keys)
}

func TestUnmarshal_Errors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"k":"int","bogus":1}`))
	var wfErr *derrors.WireFormatError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "unmarshal", wfErr.Operation)

	_, err = Unmarshal([]byte(`{"k":"weird"}`))
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "decode", wfErr.Operation)

	_, err = Unmarshal([]byte(`{"k":"table","entries":[{"key":{"k":"list"},"val":{"k":"nil"}}]}`))
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, "decode", wfErr.Operation)
	assert.Equal(t, "list", wfErr.Type)
}

func TestValues(t *testing.T) {
	ws, err := FromValues([]any{1, "a", nil})
	require.NoError(t, err)
	require.Len(t, ws, 3)

	values, err := ToValues(ws)
	require.NoError(t, err)
	assert.Equal(t, []any{1, "a", nil}, values)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	err := &derrors.ModuleInitError{Module: "thread", Index: 5, Err: errors.New("boom")}
	d := FromError(err)
	require.NotNil(t, d)
	assert.Equal(t, "module", d.Type)
	assert.Contains(t, d.Error(), "thread")

	data, jerr := json.Marshal(ThreadResultWire{Error: d})
	require.NoError(t, jerr)
	assert.Contains(t, string(data), `"error"`)
}
