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

// IngestMetricSeries links one measured value to the (country, threat, date)
// triple for every point in the series. Dates are the only dimension created
// mid-loop; countries and threats must already be materialized by
// SyncKnownEntities.
//
// Re-ingesting a point whose triple is already stored is a no-op: no second
// row, no overwrite of the first count. A malformed date skips that single
// point; integrity violations are collected and surfaced without aborting the
// rest of the series. Storage failures abort the pass.
func (e *Engine) IngestMetricSeries(ctx context.Context, country *db.Country, threat *db.Threat, points []MetricPoint) (Stats, error) {
	var stats Stats

	var recordErrs []error

	for _, point := range points {
		parsed, err := dateparse.ParseAny(point.Date)
		if err != nil {
			stats.Malformed++
			observability.RecordsIngested.WithLabelValues(observability.KindMetric, observability.OutcomeMalformed).Inc()
			e.logger.Warn().
				Err(err).
				Int64(logKeyCountry, country.ID).
				Str(logKeyThreat, threat.ID).
				Str(logKeyDate, point.Date).
				Msg("Skipping metric point with unparsable date")

			continue
		}

		date, err := e.store.EnsureDate(ctx, parsed)
		if err != nil {
			return stats, fmt.Errorf("ensure date %q: %w", point.Date, err)
		}

		_, err = e.store.FindMetricValue(ctx, country.ID, threat.ID, date.ID)
		if err == nil {
			stats.Duplicates++
			observability.RecordsIngested.WithLabelValues(observability.KindMetric, observability.OutcomeDuplicate).Inc()
			e.logger.Info().
				Int64(logKeyCountry, country.ID).
				Str(logKeyThreat, threat.ID).
				Str(logKeyDate, point.Date).
				Msg("Metric value already in database")

			continue
		}

		if !errors.Is(err, coreerrors.ErrNotFound) {
			return stats, fmt.Errorf("find metric value: %w", err)
		}

		saveErr := e.store.SaveMetricValue(ctx, &db.MetricValue{
			Value:     point.Count,
			CountryID: country.ID,
			ThreatID:  threat.ID,
			DateID:    date.ID,
		})

		switch {
		case saveErr == nil:
			stats.Inserted++
			observability.RecordsIngested.WithLabelValues(observability.KindMetric, observability.OutcomeInserted).Inc()
		case errors.Is(saveErr, coreerrors.ErrDuplicateRecord):
			// Lost the insert race against an identical triple.
			stats.Duplicates++
			observability.RecordsIngested.WithLabelValues(observability.KindMetric, observability.OutcomeDuplicate).Inc()
		case errors.Is(saveErr, coreerrors.ErrIntegrityViolation):
			observability.RecordsIngested.WithLabelValues(observability.KindMetric, observability.OutcomeFailed).Inc()
			e.logger.Error().
				Err(saveErr).
				Int64(logKeyCountry, country.ID).
				Str(logKeyThreat, threat.ID).
				Str(logKeyDate, point.Date).
				Msg("Metric value references missing dimension")
			recordErrs = append(recordErrs, saveErr)
		default:
			return stats, fmt.Errorf("save metric value: %w", saveErr)
		}
	}

	return stats, errors.Join(recordErrs...)
}
