// Package cli implements the pragtical-host command line.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jgmdev/pragtical/go/config"
	"github.com/jgmdev/pragtical/go/log"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "pragtical-host",
		Short:         "Embedded Lua host with the editor's native modules",
		Long:          "Runs Lua scripts in an interpreter with the system, renderer, process, thread and other native modules bound.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return WrapExitError(ExitCommandError, "invalid flag",
					fmt.Errorf("format %q must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "host config file (yaml, toml or json)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewModulesCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// loadConfig reads the host config and builds the logger it describes.
// Logs go to the command's error stream.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (config.HostConfig, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	levelName := cfg.Log.Level
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}
	level, err := log.ParseLevel(levelName)
	if err != nil {
		return cfg, nil, WrapExitError(ExitCommandError, "invalid log level", err)
	}
	logger := log.New(
		log.WithLevel(level),
		log.WithFormat(cfg.Log.Format),
		log.WithSource(cfg.Log.Source),
		log.WithWriter(cmd.ErrOrStderr()),
	)
	return cfg, logger, nil
}
