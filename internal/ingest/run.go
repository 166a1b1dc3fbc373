package ingest

import (
	"context"
	"errors"
	"fmt"

	db "github.com/jiwelabs/threatwatch/internal/storage"
)

// SyncKnownEntities fetches the authoritative country and threat lists from
// the source and materializes a dimension row for each. Running it before the
// fact passes guarantees fact rows never reference a dimension that does not
// exist yet; dates are the only dimension created mid-fact-loop.
func (e *Engine) SyncKnownEntities(ctx context.Context) ([]db.Country, []db.Threat, error) {
	countryRefs, err := e.fetcher.ListCountries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list countries: %w", err)
	}

	threatRefs, err := e.fetcher.ListThreatCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list threat categories: %w", err)
	}

	countries := make([]db.Country, 0, len(countryRefs))

	for _, ref := range countryRefs {
		country, err := e.store.EnsureCountry(ctx, ref.ID, ref.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("ensure country %d: %w", ref.ID, err)
		}

		countries = append(countries, *country)
	}

	threats := make([]db.Threat, 0, len(threatRefs))

	for _, ref := range threatRefs {
		threat, err := e.store.EnsureThreat(ctx, ref.Code, ref.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("ensure threat %q: %w", ref.Code, err)
		}

		threats = append(threats, *threat)
	}

	e.logger.Info().
		Int("countries", len(countries)).
		Int("threats", len(threats)).
		Msg("Known entities synchronized")

	return countries, threats, nil
}

// Run performs one full ingestion pass: the known-entities pass, then the
// metric series for every (country, threat) combination in nested sequence,
// then the news search for every term. Per-record problems are skipped and
// counted; a storage failure aborts the run with previously committed rows
// left intact.
func (e *Engine) Run(ctx context.Context, searchTerms []string) (Stats, error) {
	var stats Stats

	// Each run re-reads the authoritative source; stale fetcher caches from a
	// previous run must not survive into this one.
	if resettable, ok := e.fetcher.(interface{ Reset() }); ok {
		resettable.Reset()
	}

	countries, threats, err := e.SyncKnownEntities(ctx)
	if err != nil {
		return stats, err
	}

	var recordErrs []error

	for i := range countries {
		country, err := e.store.FindCountry(ctx, countries[i].ID)
		if err != nil {
			return stats, fmt.Errorf("resolve country %d: %w", countries[i].ID, err)
		}

		for j := range threats {
			threat, err := e.store.FindThreat(ctx, threats[j].ID)
			if err != nil {
				return stats, fmt.Errorf("resolve threat %q: %w", threats[j].ID, err)
			}

			points, err := e.fetcher.FetchMetricSeries(ctx, country.ID, threat.ID)
			if err != nil {
				return stats, fmt.Errorf("fetch series for country %d threat %q: %w", country.ID, threat.ID, err)
			}

			seriesStats, err := e.IngestMetricSeries(ctx, country, threat, points)
			stats.Add(seriesStats)

			if err != nil {
				// Integrity violations are per-record: remember them, keep going.
				recordErrs = append(recordErrs, err)
			}
		}
	}

	for _, term := range searchTerms {
		records, err := e.fetcher.FetchNews(ctx, term)
		if err != nil {
			return stats, fmt.Errorf("fetch news for %q: %w", term, err)
		}

		newsStats, err := e.IngestNews(ctx, records)
		stats.Add(newsStats)

		if err != nil {
			return stats, err
		}

		e.logger.Info().
			Str(logKeyTerm, term).
			Int("records", len(records)).
			Msg("News search ingested")
	}

	e.logger.Info().
		Int("inserted", stats.Inserted).
		Int("duplicates", stats.Duplicates).
		Int("stale", stats.Stale).
		Int("malformed", stats.Malformed).
		Msg("Ingestion run finished")

	return stats, errors.Join(recordErrs...)
}
