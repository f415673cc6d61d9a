package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jgmdev/pragtical/go/domain/entities"
	"github.com/jgmdev/pragtical/go/host"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// ModuleRow is one line of the modules listing.
type ModuleRow struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status,omitempty"`
	Index  int    `json:"index"`
}

// ModuleListing is the JSON form of the modules command.
type ModuleListing struct {
	Backend string      `json:"backend"`
	Variant string      `json:"variant"`
	Modules []ModuleRow `json:"modules"`
}

// NewModulesCommand creates the modules command.
func NewModulesCommand(rootOpts *RootOptions) *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the native modules in load order",
		Long: `Prints the compiled-in descriptor set: the core modules followed by the
variant tail selected for this build. With --load an interpreter is created
and each module's registration status is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listing := DescribeSet(hostfuncs.ActiveSet(), host.DefaultBackend)
			if load {
				report, err := loadReport(cmd, rootOpts)
				if err != nil {
					return err
				}
				listing = withStatuses(listing, report)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), listing)
			}
			return writeListing(cmd.OutOrStdout(), listing)
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "bind the modules and report each outcome")
	return cmd
}

// DescribeSet lists set, tagging core modules "core" and tail modules with
// the variant name.
func DescribeSet(set *hostfuncs.DescriptorSet, backend string) ModuleListing {
	inCore := make(map[string]bool)
	for _, d := range hostfuncs.CoreBundle().Descriptors() {
		inCore[d.Name] = true
	}

	listing := ModuleListing{Backend: backend, Variant: set.Variant()}
	for i, name := range set.Names() {
		group := set.Variant()
		if inCore[name] {
			group = "core"
		}
		listing.Modules = append(listing.Modules, ModuleRow{Index: i, Name: name, Group: group})
	}
	return listing
}

func loadReport(cmd *cobra.Command, opts *RootOptions) (entities.LoadReport, error) {
	cfg, logger, err := loadConfig(cmd, opts)
	if err != nil {
		return entities.LoadReport{}, err
	}
	interp, err := host.NewInterpreter(cmd.Context(),
		host.WithLogger(logger),
		host.WithLimits(cfg.HostLimits()),
		host.WithSearchPaths(cfg.SearchPaths...),
	)
	if err != nil {
		return entities.LoadReport{}, WrapExitError(ExitInitError, "failed to start interpreter", err)
	}
	defer interp.Close()
	return interp.Report(), nil
}

func withStatuses(listing ModuleListing, report entities.LoadReport) ModuleListing {
	status := make(map[string]string, len(report.Outcomes))
	for _, o := range report.Outcomes {
		status[o.Module] = string(o.Status)
	}
	for i := range listing.Modules {
		listing.Modules[i].Status = status[listing.Modules[i].Name]
	}
	return listing
}

func writeListing(w io.Writer, listing ModuleListing) error {
	withStatus := len(listing.Modules) > 0 && listing.Modules[0].Status != ""
	if withStatus {
		fmt.Fprintf(w, "%-5s %-16s %-9s %s\n", "INDEX", "MODULE", "GROUP", "STATUS")
	} else {
		fmt.Fprintf(w, "%-5s %-16s %s\n", "INDEX", "MODULE", "GROUP")
	}
	for _, m := range listing.Modules {
		if withStatus {
			fmt.Fprintf(w, "%-5d %-16s %-9s %s\n", m.Index, m.Name, m.Group, m.Status)
		} else {
			fmt.Fprintf(w, "%-5d %-16s %s\n", m.Index, m.Name, m.Group)
		}
	}
	_, err := fmt.Fprintf(w, "\nbackend: %s\nvariant: %s\n", listing.Backend, listing.Variant)
	return err
}
