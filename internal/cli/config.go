package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgmdev/pragtical/go/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate host configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the host config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Schema()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to generate schema", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), s)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a config file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := config.CheckFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to check config", err)
			}
			if rootOpts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else if res.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			} else {
				for _, e := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s: %s\n", args[0], e.Field, e.Message)
				}
			}
			if !res.Valid {
				return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%s is not valid", args[0])}
			}
			return nil
		},
	})

	return cmd
}
