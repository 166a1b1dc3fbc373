package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jiwelabs/threatwatch/internal/config"
	"github.com/jiwelabs/threatwatch/internal/review"
	db "github.com/jiwelabs/threatwatch/internal/storage"
)

const defaultBatchLimit = 20

func main() {
	limit := flag.Int("limit", defaultBatchLimit, "maximum items offered per review pass")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// The review session opens its own storage handle, independent of any
	// running ingester.
	database, err := db.New(ctx, cfg.PostgresDSN, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	controller := review.NewController(database, &logger)
	surface := &terminalSurface{in: bufio.NewScanner(os.Stdin), out: os.Stdout}

	result, err := controller.RunPass(ctx, surface, *limit)
	if err != nil {
		logger.Fatal().Err(err).Msg("Review pass failed")
	}

	fmt.Printf("approved=%d rejected=%d skipped=%d unchanged=%d failed=%d\n",
		result.Approved, result.Rejected, result.Skipped, result.Unchanged, result.Failed)
}

// terminalSurface prompts for one decision per unreviewed item. The whole
// batch is collected before the controller mutates anything.
type terminalSurface struct {
	in  *bufio.Scanner
	out *os.File
}

func (s *terminalSurface) Collect(_ context.Context, items []db.NewsItem) ([]review.Entry, error) {
	batch := make([]review.Entry, 0, len(items))

	for i, item := range items {
		fmt.Fprintf(s.out, "\n[%d/%d] %s\n%s\npublished %s\n%s\n",
			i+1, len(items), item.Title, item.URL,
			item.PublishingTime.Format("2006-01-02 15:04"), item.Description)

		batch = append(batch, review.Entry{
			ItemID:   item.ID,
			Decision: s.prompt(),
		})
	}

	return batch, nil
}

func (s *terminalSurface) prompt() review.Decision {
	for {
		fmt.Fprint(s.out, "approve/reject/skip [a/r/s]: ")

		if !s.in.Scan() {
			return review.DecisionSkip
		}

		switch strings.ToLower(strings.TrimSpace(s.in.Text())) {
		case "a", "approve", "y", "yes":
			return review.DecisionApprove
		case "r", "reject", "n", "no":
			return review.DecisionReject
		case "s", "skip", "":
			return review.DecisionSkip
		}
	}
}
