package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/araddon/dateparse"

	coreerrors "github.com/jiwelabs/threatwatch/internal/core/errors"
	"github.com/jiwelabs/threatwatch/internal/observability"
	db "github.com/jiwelabs/threatwatch/internal/storage"
)

// IngestNews deduplicates article records by canonical URL and inserts new
// ones with approval state unset. Records missing a required field or with an
// unparsable timestamp are skipped as malformed; records older than the
// rolling cutoff are skipped as stale. The cutoff is evaluated at ingestion
// time against the engine clock. Storage failures abort the pass.
//
// The URL is the natural key because the same article is re-fetched across
// polling cycles; the cutoff bounds unbounded growth from feeds that re-list
// old items.
func (e *Engine) IngestNews(ctx context.Context, records []NewsRecord) (Stats, error) {
	var stats Stats

	cutoff := e.now().Add(-e.cutoff)

	for _, record := range records {
		if record.URL == "" || record.Title == "" || record.Description == "" || record.Published == "" {
			stats.Malformed++
			observability.RecordsIngested.WithLabelValues(observability.KindNews, observability.OutcomeMalformed).Inc()
			e.logger.Warn().
				Str(logKeyURL, record.URL).
				Msg("Skipping news record with missing required field")

			continue
		}

		published, err := dateparse.ParseAny(record.Published)
		if err != nil {
			stats.Malformed++
			observability.RecordsIngested.WithLabelValues(observability.KindNews, observability.OutcomeMalformed).Inc()
			e.logger.Warn().
				Err(err).
				Str(logKeyURL, record.URL).
				Msg("Skipping news record with unparsable timestamp")

			continue
		}

		if published.Before(cutoff) {
			stats.Stale++
			observability.RecordsIngested.WithLabelValues(observability.KindNews, observability.OutcomeStale).Inc()
			e.logger.Info().
				Str(logKeyURL, record.URL).
				Time("published", published).
				Msg("Skipping news record older than cutoff")

			continue
		}

		_, err = e.store.FindNewsByURL(ctx, record.URL)
		if err == nil {
			stats.Duplicates++
			observability.RecordsIngested.WithLabelValues(observability.KindNews, observability.OutcomeDuplicate).Inc()
			e.logger.Info().
				Str(logKeyURL, record.URL).
				Msg("News item already in database")

			continue
		}

		if !errors.Is(err, coreerrors.ErrNotFound) {
			return stats, fmt.Errorf("find news by url: %w", err)
		}

		saveErr := e.store.SaveNewsItem(ctx, &db.NewsItem{
			URL:            record.URL,
			Title:          record.Title,
			Description:    record.Description,
			PublishingTime: published,
			ScrapingTime:   e.now(),
		})

		switch {
		case saveErr == nil:
			stats.Inserted++
			observability.RecordsIngested.WithLabelValues(observability.KindNews, observability.OutcomeInserted).Inc()
			e.logger.Info().
				Str(logKeyURL, record.URL).
				Msg("Added news item")
		case errors.Is(saveErr, coreerrors.ErrDuplicateRecord):
			stats.Duplicates++
			observability.RecordsIngested.WithLabelValues(observability.KindNews, observability.OutcomeDuplicate).Inc()
		default:
			return stats, fmt.Errorf("save news item: %w", saveErr)
		}
	}

	return stats, nil
}
