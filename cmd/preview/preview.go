// Package preview provides the preview command
package preview

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/birdnetpi/speciestools/internal/app"
	"github.com/birdnetpi/speciestools/internal/conf"
)

// Command creates and returns the preview command
func Command(settings *conf.Settings) *cobra.Command {
	var listFiles bool

	cmd := &cobra.Command{
		Use:   "preview <common name>",
		Short: "Show what deleting a species would remove",
		Long: `Preview counts the detection rows and recordings that a delete of the
species would remove. Nothing is modified.

Examples:
  speciestools preview "American Robin"
  speciestools preview --files "Bob's Bird"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(settings, func(a *app.App) error {
				targets, err := a.Species.Preview(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				p := message.NewPrinter(language.English)
				p.Fprintf(out, "Species:     %s\n", targets.CommonName)
				if targets.ScientificName != "" {
					p.Fprintf(out, "Scientific:  %s\n", targets.ScientificName)
				}
				p.Fprintf(out, "Detections:  %d\n", targets.Rows)
				p.Fprintf(out, "Recordings:  %d\n", targets.FileCount())

				if listFiles {
					for _, f := range targets.Files {
						fmt.Fprintln(out, "  "+f)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&listFiles, "files", false, "List every recording that would be removed")
	return cmd
}
