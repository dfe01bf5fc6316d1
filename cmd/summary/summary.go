// Package summary provides the summary command
package summary

import (
	"encoding/json"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/birdnetpi/speciestools/internal/app"
	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/diskmanager"
)

// Command creates and returns the summary command
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Report recordings on disk per species",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(settings, func(a *app.App) error {
				s, err := a.Species.Summary(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(s)
				}
				return render(cmd.OutOrStdout(), s)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summary as JSON")
	return cmd
}

func render(out io.Writer, s *diskmanager.Summary) error {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	p.Fprintf(w, "Storage root\t%s\n", s.Root)
	p.Fprintf(w, "Species\t%d\n", s.TotalSpecies)
	p.Fprintf(w, "Recordings\t%d (%s)\n", s.TotalFiles, s.TotalDisplay)
	p.Fprintf(w, "Size on disk\t%s\n", humanize.Bytes(s.SizeBytes))
	if s.DiskTotal > 0 {
		p.Fprintf(w, "Disk free\t%s of %s (%.1f%% used)\n",
			humanize.Bytes(s.FreeBytes), humanize.Bytes(s.DiskTotal), s.UsedPercent)
	}

	if len(s.Species) > 0 {
		p.Fprintf(w, "\nRECORDINGS\tSPECIES\n")
		for _, sp := range s.Species {
			p.Fprintf(w, "%s\t%s\n", sp.Display, sp.Name)
		}
	}
	return w.Flush()
}
