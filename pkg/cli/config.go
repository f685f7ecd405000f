package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/telekom/props-override/pkg/api"
	"github.com/telekom/props-override/pkg/cli/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(newConfigViewCommand(), newConfigMatchSetsCommand())
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the configuration after environment overrides and defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format := rt.OutputFormat()
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

func newConfigMatchSetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "matchsets",
		Short: "Print the effective package and feature match sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			view := api.NewMatchSetsView(rt.Registry().Sets())
			return rt.writeObject(view, func(w io.Writer) { output.WriteMatchSetsTable(w, view) })
		},
	}
}
