// Package lists provides the lists command for the species list files
package lists

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/specieslist"
)

// Command creates and returns the lists command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lists",
		Short: "Show and edit the confirmed, exclude and whitelist species lists",
		Long: `The exclude and whitelist files hold Sci_Common identifiers such as
"Turdus migratorius_American Robin". The confirmed list holds scientific names.`,
	}

	cmd.AddCommand(
		showCommand(settings),
		editCommand(settings, specieslist.ActionAdd, "Add a species to a list"),
		editCommand(settings, specieslist.ActionRemove, "Remove a species from a list"),
	)
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:       "show <confirmed|exclude|whitelist>",
		Short:     "Print the entries of a list",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(specieslist.Confirmed), string(specieslist.Exclude), string(specieslist.Whitelist)},
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(settings, args[0])
			if err != nil {
				return err
			}
			ids, err := list.All()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func editCommand(settings *conf.Settings, action specieslist.Action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <confirmed|exclude|whitelist> <identifier>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := openList(settings, args[0])
			if err != nil {
				return err
			}

			var changed bool
			if action == specieslist.ActionAdd {
				changed, err = list.Add(args[1])
			} else {
				changed, err = list.Remove(args[1])
			}
			if err != nil {
				return err
			}

			switch {
			case !changed:
				fmt.Fprintf(cmd.OutOrStdout(), "No change to %s list\n", list.Kind())
			case action == specieslist.ActionAdd:
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s list\n", args[1], list.Kind())
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s list\n", args[1], list.Kind())
			}
			return nil
		},
	}
}

func openList(settings *conf.Settings, name string) (*specieslist.List, error) {
	kind, err := specieslist.ParseKind(name)
	if err != nil {
		return nil, err
	}
	return specieslist.NewStore(settings.Lists).List(kind)
}
