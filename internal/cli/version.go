package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgmdev/pragtical/go/host"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the host version, backend and variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			variant := hostfuncs.ActiveSet().Variant()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"version": host.Version,
					"backend": host.DefaultBackend,
					"variant": variant,
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "pragtical-host %s (%s, %s)\n", host.Version, host.DefaultBackend, variant)
			return err
		},
	}
}
