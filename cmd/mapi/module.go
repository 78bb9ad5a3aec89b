package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "install DESCRIPTOR_PATH",
		Short: "Install a module from its descriptor file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.registry.Install(cmd.Context(), args[0])
		},
	}
}

func newUninstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall MODULE_NAME",
		Short: "Uninstall a module and remove its commands from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.registry.Uninstall(cmd.Context(), args[0])
		},
	}
}

// newDescribeCmd is the top-level describe command: with no argument it
// lists every installed module, with one it shows that module's descriptor
// and full command tree, unfiltered by any caller's policies.
func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [MODULE_NAME]",
		Short: "Show installed modules, or one module's descriptor and command tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				modules := a.registry.List()
				rows := make([][]string, len(modules))
				for i, m := range modules {
					rows[i] = []string{m.ModuleName, m.Version, m.MountPoint, m.CLIPath}
				}
				return a.emit(modules, table{
					Columns: []string{"Module", "Version", "MountPoint", "CLIPath"},
					Rows:    rows,
				})
			}

			mod, cmds, err := a.registry.Describe(args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, len(cmds))
			for i, c := range cmds {
				route := ""
				if c.Route != nil {
					route = c.Route.Method + " " + c.Route.Path
				}
				rows[i] = []string{strings.Join(c.Path, "."), string(c.Kind), route, boolCell(c.Describe)}
			}
			return a.emit(map[string]interface{}{"module": mod, "commands": cmds}, table{
				Columns: []string{"Path", "Kind", "Route", "Describe"},
				Rows:    rows,
			})
		},
	}
}
