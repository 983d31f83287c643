// Package visits prints the visits of one or more stations from the command line.
package visits

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/datastore"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/taxonomy"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// maxConcurrentDays bounds parallel per-day queries.
const maxConcurrentDays = 4

type options struct {
	group    int64
	stations []int64
	from     string
	until    string
	days     int
	json     bool
}

// Command creates the visits command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "visits",
		Short: "Print visits for stations",
		Long: `Generate visits straight from the database and print them one day at a time,
oldest day first, newest visit first within a day.

Examples:
  # last day of station 12
  trapwatch visits --station 12

  # a week of two stations as JSON
  trapwatch visits --station 12 --station 14 --days 7 --json

  # an explicit window, restricted to one group
  trapwatch visits --group 3 --station 12 --from 2024-03-01T00:00:00Z --until 2024-03-02T00:00:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := opts.criteria(time.Now().UTC())
			if err != nil {
				return err
			}
			svc, closeFn, err := newService(settings)
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := Generate(cmd.Context(), svc, criteria)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), reports)
			}
			return writeTables(cmd.OutOrStdout(), reports)
		},
	}

	cmd.Flags().Int64VarP(&opts.group, "group", "g", 0, "Restrict to a station group")
	cmd.Flags().Int64SliceVarP(&opts.stations, "station", "s", nil, "Station ID, repeatable")
	cmd.Flags().StringVar(&opts.from, "from", "", "Window start, RFC 3339 (default: until minus --days)")
	cmd.Flags().StringVar(&opts.until, "until", "", "Window end, RFC 3339 (default: now)")
	cmd.Flags().IntVar(&opts.days, "days", 1, "Window length in days when --from is not given")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON instead of a table")

	return cmd
}

func (o options) criteria(now time.Time) (visits.Criteria, error) {
	until := now
	if o.until != "" {
		t, err := time.Parse(time.RFC3339, o.until)
		if err != nil {
			return visits.Criteria{}, fmt.Errorf("invalid --until: %w", err)
		}
		until = t
	}

	var from time.Time
	if o.from != "" {
		t, err := time.Parse(time.RFC3339, o.from)
		if err != nil {
			return visits.Criteria{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	} else {
		if o.days <= 0 {
			return visits.Criteria{}, fmt.Errorf("--days must be positive")
		}
		from = until.AddDate(0, 0, -o.days)
	}

	c := visits.Criteria{
		Stations:    o.stations,
		GroupID:     o.group,
		SearchFrom:  from,
		SearchUntil: until,
		Now:         now,
	}
	return c, c.Validate()
}

func newService(settings *conf.Settings) (*visits.Service, func(), error) {
	log := logger.Global().Module("visits")

	store, err := datastore.Open(datastore.ConfigFromSettings(settings.Database), nil)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}

	finder, _, err := taxonomy.NewFinder(taxonomy.ConfigFromSettings(settings.Taxonomy), nil)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	cfg := visits.ConfigFromSettings(settings.Visits)
	if err := cfg.Validate(); err != nil {
		closeFn()
		return nil, nil, err
	}
	return visits.NewService(store, visits.NewEngine(cfg, finder), visits.WithLogger(log)), closeFn, nil
}

// Source generates visits, normally a *visits.Service.
type Source interface {
	Visits(ctx context.Context, criteria visits.Criteria) (visits.Result, error)
}

// DayReport is the result for one day-long window.
type DayReport struct {
	From   time.Time     `json:"from"`
	Until  time.Time     `json:"until"`
	Result visits.Result `json:"result"`
}

// SplitDays cuts the criteria window into consecutive windows of at most
// 24 hours, starting at SearchFrom.
func SplitDays(criteria visits.Criteria) []visits.Criteria {
	var windows []visits.Criteria
	for from := criteria.SearchFrom; from.Before(criteria.SearchUntil); from = from.Add(24 * time.Hour) {
		c := criteria
		c.SearchFrom = from
		c.SearchUntil = from.Add(24 * time.Hour)
		if c.SearchUntil.After(criteria.SearchUntil) {
			c.SearchUntil = criteria.SearchUntil
		}
		windows = append(windows, c)
	}
	return windows
}

// Generate runs one query per day window, a few at a time, and returns the
// reports in chronological order. A visit is reported by the window its
// start falls in, so none is counted twice.
func Generate(ctx context.Context, src Source, criteria visits.Criteria) ([]DayReport, error) {
	windows := SplitDays(criteria)
	reports := make([]DayReport, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDays)
	for i, c := range windows {
		g.Go(func() error {
			res, err := src.Visits(gctx, c)
			if err != nil {
				return fmt.Errorf("window starting %s: %w", c.SearchFrom.UTC().Format(time.DateOnly), err)
			}
			reports[i] = DayReport{From: c.SearchFrom, Until: c.SearchUntil, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Total counts visits over all reports.
func Total(reports []DayReport) int {
	n := 0
	for _, r := range reports {
		n += len(r.Result.Visits)
	}
	return n
}

func writeJSON(w io.Writer, reports []DayReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

func writeTables(w io.Writer, reports []DayReport) error {
	for _, r := range reports {
		if _, err := fmt.Fprintf(w, "%s to %s\n%s\n\n",
			r.From.UTC().Format(time.DateTime), r.Until.UTC().Format(time.DateTime), RenderTable(r.Result)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d visits in %d windows\n", Total(reports), len(reports))
	return err
}

// RenderTable formats visits and unsupported clusters as text tables.
func RenderTable(result visits.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Start", "End", "Station", "Classification", "AI", "Source", "Recordings", "Complete"})

	for _, v := range result.Visits {
		station := v.StationName
		if station == "" {
			station = strconv.FormatInt(v.StationID, 10)
		}
		source := "ai"
		if v.ClassFromUserTag {
			source = "human"
		}
		complete := "yes"
		if v.Incomplete {
			complete = "no"
		}
		tw.AppendRow(table.Row{
			v.TimeStart.UTC().Format(time.DateTime),
			v.TimeEnd.UTC().Format(time.TimeOnly),
			station,
			v.Classification,
			v.ClassificationAI,
			source,
			len(v.Recordings),
			complete,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	tw.AppendFooter(table.Row{"", "", "", "", "", "Visits", len(result.Visits), ""})

	out := tw.Render()
	if len(result.Unsupported) == 0 {
		return out
	}

	ut := table.NewWriter()
	ut.SetStyle(table.StyleRounded)
	ut.SetTitle("Unsupported clusters")
	ut.AppendHeader(table.Row{"Start", "Station", "Labels", "Reason"})
	for _, u := range result.Unsupported {
		ut.AppendRow(table.Row{
			u.TimeStart.UTC().Format(time.DateTime),
			u.StationID,
			strings.Join(u.Labels, ", "),
			u.Reason,
		})
	}
	return out + "\n" + ut.Render()
}
