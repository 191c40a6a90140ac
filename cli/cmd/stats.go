package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stitch/cli/reader"
	"github.com/pithecene-io/stitch/cli/render"
	"github.com/pithecene-io/stitch/cli/tui"
	"github.com/pithecene-io/stitch/lode"
)

// StatsCommand returns the stats command.
// Without a subcommand it summarizes the journal's event and message records.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Summarize a node's reassembly journal",
		Flags:  journalFlags(),
		Action: statsJournalAction,
		Subcommands: []*cli.Command{
			{
				Name:   "metrics",
				Usage:  "Show the latest metrics snapshot written at shutdown",
				Flags:  journalFlags(),
				Action: statsMetricsAction,
			},
		},
	}
}

func journalFlags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "journal-path", Usage: "Journal path (fs: directory, s3: bucket/prefix)", Required: true},
		&cli.StringFlag{Name: "journal-backend", Usage: "Journal backend: fs or s3", Value: "fs"},
		&cli.StringFlag{Name: "dataset", Usage: "Journal dataset ID", Value: lode.DefaultDataset},
		&cli.StringFlag{Name: "node", Usage: "Restrict to one node ID"},
		&cli.StringFlag{Name: "region", Usage: "AWS region (s3 only)"},
		&cli.StringFlag{Name: "endpoint", Usage: "Custom S3 endpoint (s3 only)"},
		&cli.BoolFlag{Name: "s3-path-style", Usage: "Force path-style S3 addressing"},
	}, TUIReadOnlyFlags()...)
}

func journalSource(c *cli.Context) reader.Source {
	return reader.Source{
		Dataset:   c.String("dataset"),
		Backend:   c.String("journal-backend"),
		Path:      c.String("journal-path"),
		Region:    c.String("region"),
		Endpoint:  c.String("endpoint"),
		PathStyle: c.Bool("s3-path-style"),
	}
}

func statsJournalAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rd, err := reader.Open(ctx, journalSource(c))
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	stats, err := rd.Stats(ctx, c.String("node"))
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStats, stats)
	}
	return r.Render(stats)
}

func statsMetricsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rd, err := reader.Open(ctx, journalSource(c))
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	snapshot, err := rd.Metrics(ctx, c.String("node"))
	if err != nil {
		return fmt.Errorf("failed to read metrics from journal: %w", err)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewMetrics, snapshot)
	}
	return r.Render(snapshot)
}
