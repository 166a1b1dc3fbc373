package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/jiwelabs/threatwatch/internal/config"
	db "github.com/jiwelabs/threatwatch/internal/storage"
)

const defaultNewsLimit = 50

func main() {
	news := flag.String("news", "", "list news instead of metrics: all, approved or pending")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	if *news != "" {
		if err := printNews(ctx, database, *news); err != nil {
			logger.Fatal().Err(err).Msg("News report failed")
		}

		return
	}

	if err := printMetrics(ctx, database, cfg.ReportDates); err != nil {
		logger.Fatal().Err(err).Msg("Metric report failed")
	}
}

func printMetrics(ctx context.Context, database *db.DB, dates int) error {
	rows, err := database.MetricReport(ctx, dates)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tCOUNTRY\tTHREAT\tCOUNT")

	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.Date.Format("2006-01-02"), r.Country, r.Threat, r.Value)
	}

	return w.Flush()
}

func printNews(ctx context.Context, database *db.DB, filter string) error {
	var f db.NewsFilter

	switch filter {
	case "all":
		f = db.NewsAll
	case "approved":
		f = db.NewsApproved
	case "pending":
		f = db.NewsPending
	default:
		return fmt.Errorf("unknown news filter %q", filter)
	}

	items, err := database.ListNews(ctx, f, defaultNewsLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLISHED\tSTATE\tTITLE\tURL")

	for _, item := range items {
		state := "pending"

		switch {
		case item.IsApproved == nil:
		case *item.IsApproved:
			state = "approved"
		default:
			state = "rejected"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			item.PublishingTime.Format("2006-01-02"), state, item.Title, item.URL)
	}

	return w.Flush()
}
