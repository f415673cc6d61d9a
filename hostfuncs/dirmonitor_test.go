package hostfuncs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgmdev/pragtical/go/hostfuncs"
)

func TestMonitor_WatchAndCheck(t *testing.T) {
	m, err := hostfuncs.NewMonitor()
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	dir := t.TempDir()
	id, err := m.Watch(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	again, err := m.Watch(dir + string(filepath.Separator))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o600))

	var seen []int
	require.Eventually(t, func() bool {
		_, _, err := m.Check(func(id int) error {
			seen = append(seen, id)
			return nil
		})
		require.NoError(t, err)
		return len(seen) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{id}, seen[:1])

	n, _, err := m.Check(func(int) error { return nil })
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 1)
}

func TestMonitor_Errors(t *testing.T) {
	m, err := hostfuncs.NewMonitor()
	require.NoError(t, err)

	_, err = m.Watch(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	assert.NoError(t, m.Unwatch(42))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Watch(t.TempDir())
	assert.EqualError(t, err, "monitor is closed")
}

func TestDirMonitorModule_Calls(t *testing.T) {
	ns := openModule(t, "dirmonitor", hostfuncs.DirMonitorModule)

	out, err := ns.Call("new")
	require.NoError(t, err)
	mon := out[0].(hostfuncs.Object)
	assert.Equal(t, hostfuncs.MonitorClass, mon.Class)
	defer func() { _, _ = ns.CallMethod(mon, "close") }()

	out, err = ns.CallMethod(mon, "mode")
	require.NoError(t, err)
	assert.Equal(t, []any{"multiple"}, out)

	dir := t.TempDir()
	out, err = ns.CallMethod(mon, "watch", dir)
	require.NoError(t, err)
	id := out[0].(int)
	assert.Positive(t, id)

	out, err = ns.CallMethod(mon, "watch", filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Equal(t, -1, out[0])

	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	var changed []any
	callback := hostfuncs.Callable(func(args ...any) ([]any, error) {
		changed = append(changed, args[0])
		return nil, nil
	})
	require.Eventually(t, func() bool {
		_, err := ns.CallMethod(mon, "check", callback)
		require.NoError(t, err)
		return len(changed) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, id, changed[0])

	out, err = ns.CallMethod(mon, "unwatch", id)
	require.NoError(t, err)
	assert.Equal(t, []any{true}, out)

	_, err = ns.CallMethod(mon, "check", "not a function")
	assert.Error(t, err)
}
