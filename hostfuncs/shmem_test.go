package hostfuncs_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/hostfuncs"
	"github.com/jgmdev/pragtical/go/internal/testutil"
)

func TestOpenSegment(t *testing.T) {
	s, err := hostfuncs.OpenSegment(t.Name(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Capacity())

	again, err := hostfuncs.OpenSegment(t.Name(), 50)
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.Equal(t, 2, again.Capacity())

	_, err = hostfuncs.OpenSegment("", 2)
	assert.ErrorIs(t, err, hostfuncs.ErrEmptyName)

	_, err = hostfuncs.OpenSegment(t.Name()+"-zero", 0)
	var cfgErr *derrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSegment_SetGet(t *testing.T) {
	s, err := hostfuncs.OpenSegment(t.Name(), 2)
	require.NoError(t, err)

	value := map[string]any{"list": []any{1, "two"}}
	require.NoError(t, s.Set("a", value))

	got, ok, err := s.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, value, got)

	// Reads are copies.
	got.(map[string]any)["list"] = nil
	again, _, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, value, again)

	_, ok, err = s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSegment_Capacity(t *testing.T) {
	s, err := hostfuncs.OpenSegment(t.Name(), 2)
	require.NoError(t, err)

	require.NoError(t, s.Set("a", 1))
	require.NoError(t, s.Set("b", 2))
	require.NoError(t, s.Set("a", 3), "overwriting a key does not need room")

	err = s.Set("c", 4)
	var capErr *derrors.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Limit)

	require.NoError(t, s.Set("a", nil))
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Set("c", 4))
	assert.Equal(t, []string{"b", "c"}, s.Keys())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSegment_RejectsFunctions(t *testing.T) {
	s, err := hostfuncs.OpenSegment(t.Name(), 2)
	require.NoError(t, err)

	err = s.Set("f", hostfuncs.Callable(func(...any) ([]any, error) { return nil, nil }))
	assert.ErrorIs(t, err, hostfuncs.ErrNotTransferred)
}

func TestSegment_Concurrent(t *testing.T) {
	s, err := hostfuncs.OpenSegment(t.Name(), 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.Set(string(rune('a'+i))+string(rune('a'+j)), i*j)
				_, _, _ = s.Get("aa")
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 200, s.Len())
}

func TestShmemModule_Calls(t *testing.T) {
	ctx := hostfuncs.WithLimits(context.Background(), hostfuncs.Limits{ShmemCapacity: 1})
	ns, err := testutil.OpenModule(ctx, "shmem", hostfuncs.ShmemModule)
	require.NoError(t, err)

	out, err := ns.Call("open", t.Name())
	require.NoError(t, err)
	seg, ok := out[0].(hostfuncs.Object)
	require.True(t, ok)
	assert.Equal(t, hostfuncs.SegmentClass, seg.Class)

	out, err = ns.CallMethod(seg, "capacity")
	require.NoError(t, err)
	assert.Equal(t, []any{1}, out)

	out, err = ns.CallMethod(seg, "set", "k", "v")
	require.NoError(t, err)
	assert.Equal(t, []any{true}, out)

	out, err = ns.CallMethod(seg, "set", "other", "v")
	require.NoError(t, err)
	assert.Equal(t, false, out[0])
	assert.Contains(t, out[1], "is full")

	out, err = ns.CallMethod(seg, "get", "k")
	require.NoError(t, err)
	assert.Equal(t, []any{"v"}, out)

	out, err = ns.CallMethod(seg, "keys")
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{"k"}}, out)

	_, err = ns.CallMethod(seg, "remove", "k")
	require.NoError(t, err)
	out, err = ns.CallMethod(seg, "size")
	require.NoError(t, err)
	assert.Equal(t, []any{0}, out)

	out, err = ns.Call("open", "")
	require.NoError(t, err)
	assert.Nil(t, out[0])
}
