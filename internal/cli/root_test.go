package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pragtical-host", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{{"run"}, {"modules"}, {"config"}, {"config", "schema"}, {"config", "check"}, {"version"}}

	for _, path := range commands {
		sub, _, err := cmd.Find(path)
		require.NoError(t, err, "command %v should exist", path)
		assert.Equal(t, path[len(path)-1], sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "version")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitInitError, GetExitCode(WrapExitError(ExitInitError, "init", errors.New("boom"))))
}

func TestRunRequiresInput(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunScriptError(t *testing.T) {
	_, err := execute(t, "run", "-e", "error('nope')")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestRunEvalCoreModules(t *testing.T) {
	out, err := execute(t, "run", "-e", "return type(system), type(regex), select('#', ...)", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "table\ntable\n2\n", out)
}

func TestConfigCheck(t *testing.T) {
	out, err := execute(t, "config", "check", "../../config/testdata/host.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "host.yaml: ok")

	_, err = execute(t, "config", "check", "../../config/testdata/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "search_paths")
}

func TestModulesJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "modules", "--load")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "bound"`)
	assert.Contains(t, out, `"name": "shmem"`)
}
