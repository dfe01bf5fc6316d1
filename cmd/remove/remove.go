// Package remove provides the delete command
package remove

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/birdnetpi/speciestools/internal/app"
	"github.com/birdnetpi/speciestools/internal/conf"
)

// Command creates and returns the delete command
func Command(settings *conf.Settings) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <common name>",
		Short: "Delete every detection and recording of a species",
		Long: `Delete removes the species' detection rows, its recordings and their
spectrograms, prunes emptied species directories and drops the species from
the confirmed list. It asks for confirmation unless --yes is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			p := message.NewPrinter(language.English)

			return app.Run(settings, func(a *app.App) error {
				if !yes {
					targets, err := a.Species.Preview(cmd.Context(), name)
					if err != nil {
						return err
					}
					prompt := p.Sprintf("Delete %d detections and %d recordings of %s? [y/N] ",
						targets.Rows, targets.FileCount(), name)
					if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
						return nil
					}
				}

				result, err := a.Species.Delete(cmd.Context(), name)
				if err != nil {
					return err
				}
				p.Fprintf(cmd.OutOrStdout(), "Deleted %d detections and %d recordings of %s\n",
					result.RowsDeleted, result.FilesDeleted, name)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking for confirmation")
	return cmd
}

// confirm prints prompt and reports whether the answer was yes. End of
// input counts as no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = io.WriteString(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
