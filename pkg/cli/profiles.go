package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/telekom/props-override/pkg/api"
	"github.com/telekom/props-override/pkg/cli/output"
)

func NewProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [NAME]",
		Short: "List the configured profiles or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			reg := rt.Registry()

			if len(args) == 1 {
				p, ok := reg.Profile(args[0])
				if !ok {
					return fmt.Errorf("profile %q not found", args[0])
				}
				view := api.NewProfileView(p)
				return rt.writeObject(view, func(w io.Writer) { output.WriteProfileTable(w, view) })
			}

			profiles := reg.Profiles()
			views := make([]api.ProfileView, 0, len(profiles))
			for _, p := range profiles {
				views = append(views, api.NewProfileView(p))
			}
			return rt.writeObject(views, func(w io.Writer) { output.WriteProfilesTable(w, views) })
		},
	}
}
