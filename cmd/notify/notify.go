package notify

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/notification"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// Command returns a cobra command that sends a test alert through the
// configured notification URLs.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		species string
		station string
		urls    []string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test species alert",
		Long: `Send a test alert for a made-up visit through the notification URLs.

Examples:
  # use notification.urls from the config file
  trapwatch notify --species stoat

  # try a URL before adding it to the config
  trapwatch notify --url "ntfy://ntfy.sh/my-traps" --station "creek line"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := notification.ConfigFromSettings(settings.Notification)
			if len(urls) > 0 {
				cfg.URLs = urls
			}
			// the test visit must be watched
			cfg.Species = []string{species}

			notifier, err := notification.New(cfg, nil)
			if err != nil {
				return err
			}

			sent, err := notifier.NotifyVisit(cmd.Context(), TestVisit(species, station, time.Now().UTC()))
			if err != nil {
				return fmt.Errorf("failed to send alert: %w", err)
			}
			if !sent {
				return fmt.Errorf("alert for %q was not sent", species)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Alert sent to %d service(s)\n", len(cfg.URLs))
			return err
		},
	}

	cmd.Flags().StringVar(&species, "species", "stoat", "Classification of the test visit")
	cmd.Flags().StringVar(&station, "station", "test station", "Station name of the test visit")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "shoutrrr URL, repeatable; overrides notification.urls")

	return cmd
}

// TestVisit builds a one-minute human-confirmed visit ending at end.
func TestVisit(species, station string, end time.Time) visits.Visit {
	return visits.Visit{
		StationName: station,
		VisitDef: visits.VisitDef{
			Classification:   species,
			ClassificationAI: species,
			ClassFromUserTag: true,
		},
		TimeStart:  end.Add(-time.Minute),
		TimeEnd:    end,
		Recordings: []visits.VisitRecording{{}},
	}
}
