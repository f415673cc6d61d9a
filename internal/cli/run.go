package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/host"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Eval    string
	Verbose bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [script] [args...]",
		Short: "Run a Lua script with the native modules bound",
		Long: `Creates an interpreter, binds every native module in load order and
runs the script. Extra arguments are passed to the chunk as varargs. The
values the chunk returns are printed, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Eval, "eval", "e", "", "run this chunk instead of a script file")
	cmd.Flags().BoolVar(&opts.Verbose, "trace-calls", false, "log every native function call at debug level")

	return cmd
}

func runScript(cmd *cobra.Command, opts *RunOptions, args []string) error {
	if opts.Eval == "" && len(args) == 0 {
		return WrapExitError(ExitCommandError, "nothing to run", errors.New("pass a script path or --eval"))
	}

	cfg, logger, err := loadConfig(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	hostOpts := []host.Option{
		host.WithLogger(logger),
		host.WithLimits(cfg.HostLimits()),
		host.WithSearchPaths(cfg.SearchPaths...),
	}
	if opts.Verbose {
		hostOpts = append(hostOpts, host.WithMiddleware(hostfuncs.LoggingMiddleware(logger)))
	}

	interp, err := host.NewInterpreter(cmd.Context(), hostOpts...)
	if err != nil {
		return WrapExitError(ExitInitError, "failed to start interpreter", err)
	}
	defer interp.Close()

	var results []any
	if opts.Eval != "" {
		results, err = interp.DoString(opts.Eval, toAny(args)...)
	} else {
		results, err = interp.DoFile(args[0], toAny(args[1:])...)
	}
	if err != nil {
		var scriptErr *derrors.ScriptError
		if errors.As(err, &scriptErr) {
			return WrapExitError(ExitFailure, "script failed", err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	for _, v := range results {
		fmt.Fprintln(cmd.OutOrStdout(), formatValue(v))
	}
	return nil
}

func toAny(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case hostfuncs.Callable:
		return "function"
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
